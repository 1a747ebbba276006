package overlay_test

import (
	"encoding/json"
	"testing"

	"chorus/internal/overlay"
)

func TestParseMode(t *testing.T) {
	for _, value := range []string{"highlight", "gradient", "fill", "bounce", " Fill "} {
		if _, ok := overlay.ParseMode(value); !ok {
			t.Errorf("ParseMode(%q) rejected known mode", value)
		}
	}
	if _, ok := overlay.ParseMode("sparkle"); ok {
		t.Error("ParseMode accepted unknown mode")
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	spec := overlay.Spec{Border: overlay.Border{Enabled: true}}
	spec.Normalize()

	if spec.FontSize != overlay.Default().FontSize {
		t.Errorf("FontSize = %d, want default", spec.FontSize)
	}
	if spec.Mode != overlay.ModeHighlight {
		t.Errorf("Mode = %q, want highlight", spec.Mode)
	}
	if spec.Border.Width == 0 || spec.Border.Color == nil {
		t.Error("enabled border should receive default width and color")
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("normalized spec should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*overlay.Spec)
	}{
		{"unknown mode", func(s *overlay.Spec) { s.Mode = "sparkle" }},
		{"tiny font", func(s *overlay.Spec) { s.FontSize = 2 }},
		{"negative wrap width", func(s *overlay.Spec) { s.MaxLineWidth = -1 }},
		{"zero speed", func(s *overlay.Spec) { s.AnimationSpeed = 0 }},
		{"huge border", func(s *overlay.Spec) { s.Border = overlay.Border{Enabled: true, Width: 40} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := overlay.Default()
			tc.mutate(&spec)
			if err := spec.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := overlay.ParseColor("#ffd700")
	if err != nil {
		t.Fatalf("ParseColor failed: %v", err)
	}
	if c != (overlay.RGBA{R: 255, G: 215, B: 0, A: 255}) {
		t.Fatalf("unexpected color: %+v", c)
	}

	c, err = overlay.ParseColor("#10203040")
	if err != nil {
		t.Fatalf("ParseColor with alpha failed: %v", err)
	}
	if c.A != 0x40 {
		t.Fatalf("alpha = %#x, want 0x40", c.A)
	}

	if _, err := overlay.ParseColor("red"); err == nil {
		t.Fatal("expected error for non-hex color")
	}
}

func TestColorJSONRoundTrip(t *testing.T) {
	var spec overlay.Spec
	payload := `{"base_color":"#112233","highlight_color":"#ffd70080","mode":"gradient"}`
	if err := json.Unmarshal([]byte(payload), &spec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if spec.BaseColor != (overlay.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 255}) {
		t.Fatalf("unexpected base color: %+v", spec.BaseColor)
	}
	if spec.HighlightColor.A != 0x80 {
		t.Fatalf("highlight alpha = %#x, want 0x80", spec.HighlightColor.A)
	}

	out, err := json.Marshal(spec.BaseColor)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `"#112233ff"` {
		t.Fatalf("marshal = %s", out)
	}
}
