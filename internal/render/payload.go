package render

import (
	"encoding/json"
	"fmt"

	"chorus/internal/overlay"
	"chorus/internal/timing"
)

// LinePayload is one subtitle line as submitted over the API.
type LinePayload struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// WordPayload is one timed word segment as submitted over the API.
type WordPayload struct {
	Word  string  `json:"word"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// DecodeTiming parses the persisted subtitle and word payloads into a timing
// index. Validation happens inside timing.NewIndex, so a payload that decoded
// once at submission decodes identically at render time.
func DecodeTiming(subtitlesJSON, wordsJSON string) (*timing.Index, error) {
	var linePayloads []LinePayload
	if subtitlesJSON != "" {
		if err := json.Unmarshal([]byte(subtitlesJSON), &linePayloads); err != nil {
			return nil, fmt.Errorf("decode subtitles: %w", err)
		}
	}
	var wordPayloads []WordPayload
	if wordsJSON != "" {
		if err := json.Unmarshal([]byte(wordsJSON), &wordPayloads); err != nil {
			return nil, fmt.Errorf("decode words: %w", err)
		}
	}

	lines := make([]timing.Line, 0, len(linePayloads))
	for _, p := range linePayloads {
		lines = append(lines, timing.Line{Text: p.Text, Start: p.Start, End: p.End})
	}
	words := make([]timing.Word, 0, len(wordPayloads))
	for _, p := range wordPayloads {
		words = append(words, timing.Word{Text: p.Word, Start: p.Start, End: p.End})
	}
	return timing.NewIndex(lines, words)
}

// DecodeOverlay parses a persisted overlay payload, applying defaults when the
// payload is empty.
func DecodeOverlay(overlayJSON string) (overlay.Spec, error) {
	spec := overlay.Default()
	if overlayJSON != "" {
		spec = overlay.Spec{}
		if err := json.Unmarshal([]byte(overlayJSON), &spec); err != nil {
			return overlay.Spec{}, fmt.Errorf("decode overlay: %w", err)
		}
	}
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return overlay.Spec{}, err
	}
	return spec, nil
}

// DecodeSettings parses a persisted settings payload, applying defaults when
// the payload is empty.
func DecodeSettings(settingsJSON string) (Settings, error) {
	settings := DefaultSettings()
	if settingsJSON != "" {
		settings = Settings{}
		if err := json.Unmarshal([]byte(settingsJSON), &settings); err != nil {
			return Settings{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
