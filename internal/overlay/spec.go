// Package overlay defines the explicit overlay style contract. Every
// recognized option is enumerated with a default; submissions are normalized
// and validated once, before a job record is created.
package overlay

import (
	"fmt"
	"image/color"
	"strings"
)

// Mode selects the per-word highlight algorithm. The set is closed: preview
// and final render dispatch through the same variants, so an unknown mode is
// a submission error, never a silent fallback.
type Mode string

const (
	ModeHighlight Mode = "highlight"
	ModeGradient  Mode = "gradient"
	ModeFill      Mode = "fill"
	ModeBounce    Mode = "bounce"
)

var knownModes = map[Mode]struct{}{
	ModeHighlight: {},
	ModeGradient:  {},
	ModeFill:      {},
	ModeBounce:    {},
}

// ParseMode converts a string into a known Mode.
func ParseMode(value string) (Mode, bool) {
	normalized := Mode(strings.ToLower(strings.TrimSpace(value)))
	_, ok := knownModes[normalized]
	return normalized, ok
}

// Border styles the text outline.
type Border struct {
	Enabled bool  `json:"enabled"`
	Width   int   `json:"width"`
	Color   *RGBA `json:"color,omitempty"`
}

// Shadow styles the drop shadow drawn behind the glyph run.
type Shadow struct {
	Enabled bool  `json:"enabled"`
	OffsetX int   `json:"offset_x"`
	OffsetY int   `json:"offset_y"`
	Color   *RGBA `json:"color,omitempty"`
}

// Glow styles the enlarged highlight-colored halo drawn around filled text.
type Glow struct {
	Enabled bool `json:"enabled"`
	Radius  int  `json:"radius"`
}

// Spec enumerates every recognized overlay option.
type Spec struct {
	FontSize       int     `json:"font_size"`
	LineHeight     float64 `json:"line_height"`
	BaseColor      RGBA    `json:"base_color"`
	HighlightColor RGBA    `json:"highlight_color"`
	Mode           Mode    `json:"mode"`
	AnimationSpeed float64 `json:"animation_speed"`
	Border         Border  `json:"border"`
	Shadow         Shadow  `json:"shadow"`
	Glow           Glow    `json:"glow"`
	// Anchor is the vertical center of the subtitle block as a fraction of
	// frame height (0 = top, 1 = bottom).
	Anchor       float64 `json:"anchor"`
	MaxLineWidth int     `json:"max_line_width"`
	AutoWrap     bool    `json:"auto_wrap"`
	WordSpacing  int     `json:"word_spacing"`
}

// Default returns the spec applied when a submission omits overlay options.
func Default() Spec {
	return Spec{
		FontSize:       48,
		LineHeight:     1.25,
		BaseColor:      RGBA{R: 255, G: 255, B: 255, A: 255},
		HighlightColor: RGBA{R: 255, G: 215, B: 0, A: 255},
		Mode:           ModeHighlight,
		AnimationSpeed: 1,
		Border:         Border{Enabled: true, Width: 2, Color: &RGBA{A: 255}},
		Shadow:         Shadow{Enabled: true, OffsetX: 2, OffsetY: 2, Color: &RGBA{A: 160}},
		Anchor:         0.8,
		MaxLineWidth:   0, // filled from frame width at render time
		AutoWrap:       true,
		WordSpacing:    16,
	}
}

// Normalize fills zero-valued fields from defaults and clamps ranges.
func (s *Spec) Normalize() {
	def := Default()
	if s.FontSize <= 0 {
		s.FontSize = def.FontSize
	}
	if s.LineHeight <= 0 {
		s.LineHeight = def.LineHeight
	}
	if s.Mode == "" {
		s.Mode = def.Mode
	}
	if s.AnimationSpeed <= 0 {
		s.AnimationSpeed = def.AnimationSpeed
	}
	if s.BaseColor == (RGBA{}) {
		s.BaseColor = def.BaseColor
	}
	if s.HighlightColor == (RGBA{}) {
		s.HighlightColor = def.HighlightColor
	}
	if s.Border.Enabled {
		if s.Border.Width <= 0 {
			s.Border.Width = def.Border.Width
		}
		if s.Border.Color == nil {
			s.Border.Color = def.Border.Color
		}
	}
	if s.Shadow.Enabled {
		if s.Shadow.OffsetX == 0 && s.Shadow.OffsetY == 0 {
			s.Shadow.OffsetX = def.Shadow.OffsetX
			s.Shadow.OffsetY = def.Shadow.OffsetY
		}
		if s.Shadow.Color == nil {
			s.Shadow.Color = def.Shadow.Color
		}
	}
	if s.Glow.Enabled && s.Glow.Radius <= 0 {
		s.Glow.Radius = 4
	}
	if s.Anchor <= 0 || s.Anchor > 1 {
		s.Anchor = def.Anchor
	}
	if s.WordSpacing <= 0 {
		s.WordSpacing = def.WordSpacing
	}
}

// Validate rejects malformed option combinations. Called once at submission.
func (s *Spec) Validate() error {
	if _, ok := knownModes[s.Mode]; !ok {
		return fmt.Errorf("unknown highlight mode %q", s.Mode)
	}
	if s.FontSize < 8 || s.FontSize > 300 {
		return fmt.Errorf("font_size %d out of range [8, 300]", s.FontSize)
	}
	if s.LineHeight < 0.5 || s.LineHeight > 4 {
		return fmt.Errorf("line_height %.2f out of range [0.5, 4]", s.LineHeight)
	}
	if s.AnimationSpeed <= 0 || s.AnimationSpeed > 10 {
		return fmt.Errorf("animation_speed %.2f out of range (0, 10]", s.AnimationSpeed)
	}
	if s.MaxLineWidth < 0 {
		return fmt.Errorf("max_line_width must not be negative")
	}
	if s.Border.Enabled && (s.Border.Width < 1 || s.Border.Width > 16) {
		return fmt.Errorf("border.width %d out of range [1, 16]", s.Border.Width)
	}
	if s.Glow.Enabled && (s.Glow.Radius < 1 || s.Glow.Radius > 32) {
		return fmt.Errorf("glow.radius %d out of range [1, 32]", s.Glow.Radius)
	}
	return nil
}

// RGBA is a JSON-friendly color carried through the API as "#RRGGBB" or
// "#RRGGBBAA".
type RGBA struct {
	R, G, B, A uint8
}

// Color converts to the stdlib color type used by the compositor.
func (c RGBA) Color() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// String renders the color as lowercase #rrggbbaa hex.
func (c RGBA) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// MarshalJSON encodes the color as a hex string.
func (c RGBA) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts "#RRGGBB" and "#RRGGBBAA" strings.
func (c *RGBA) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := ParseColor(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA" hex notation.
func ParseColor(value string) (RGBA, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(value, "#"))
	if len(trimmed) != 6 && len(trimmed) != 8 {
		return RGBA{}, fmt.Errorf("color %q: want #RRGGBB or #RRGGBBAA", value)
	}
	var bytes [4]uint8
	bytes[3] = 255
	for i := 0; i < len(trimmed)/2; i++ {
		var b uint8
		if _, err := fmt.Sscanf(trimmed[i*2:i*2+2], "%02x", &b); err != nil {
			return RGBA{}, fmt.Errorf("color %q: %w", value, err)
		}
		bytes[i] = b
	}
	return RGBA{R: bytes[0], G: bytes[1], B: bytes[2], A: bytes[3]}, nil
}
