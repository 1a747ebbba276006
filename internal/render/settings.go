package render

import (
	"fmt"
	"strings"
)

// Settings selects the output characteristics of one render job.
type Settings struct {
	Resolution string `json:"resolution"`
	FrameRate  int    `json:"frame_rate"`
	Quality    string `json:"quality"`
	Format     string `json:"format"`
}

type dimensions struct {
	width  int
	height int
}

var resolutions = map[string]dimensions{
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
	"4k":    {3840, 2160},
}

var frameRates = map[int]struct{}{24: {}, 30: {}, 60: {}}

var qualities = map[string]struct{}{"high": {}, "medium": {}, "low": {}}

var formats = map[string]struct{}{"mp4": {}, "webm": {}}

// DefaultSettings returns the settings applied when a submission omits them.
func DefaultSettings() Settings {
	return Settings{Resolution: "1080p", FrameRate: 30, Quality: "medium", Format: "mp4"}
}

// Normalize fills omitted fields from defaults and lowercases enumerations.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	s.Resolution = strings.ToLower(strings.TrimSpace(s.Resolution))
	if s.Resolution == "" {
		s.Resolution = def.Resolution
	}
	if s.FrameRate == 0 {
		s.FrameRate = def.FrameRate
	}
	s.Quality = strings.ToLower(strings.TrimSpace(s.Quality))
	if s.Quality == "" {
		s.Quality = def.Quality
	}
	s.Format = strings.ToLower(strings.TrimSpace(s.Format))
	if s.Format == "" {
		s.Format = def.Format
	}
}

// Validate rejects values outside the supported enumerations.
func (s Settings) Validate() error {
	if _, ok := resolutions[s.Resolution]; !ok {
		return fmt.Errorf("unsupported resolution %q", s.Resolution)
	}
	if _, ok := frameRates[s.FrameRate]; !ok {
		return fmt.Errorf("unsupported frame rate %d", s.FrameRate)
	}
	if _, ok := qualities[s.Quality]; !ok {
		return fmt.Errorf("unsupported quality %q", s.Quality)
	}
	if _, ok := formats[s.Format]; !ok {
		return fmt.Errorf("unsupported format %q", s.Format)
	}
	return nil
}

// Dimensions returns the pixel size for the selected resolution.
func (s Settings) Dimensions() (width, height int) {
	dims := resolutions[s.Resolution]
	return dims.width, dims.height
}
