package compositor_test

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"chorus/internal/compositor"
	"chorus/internal/overlay"
	"chorus/internal/timing"
)

func testSpec() overlay.Spec {
	spec := overlay.Default()
	spec.Normalize()
	return spec
}

func helloWorldIndex(t *testing.T) *timing.Index {
	t.Helper()
	idx, err := timing.NewIndex(
		[]timing.Line{{Start: 2, End: 4, Text: "Hello World"}},
		[]timing.Word{
			{Text: "Hello", Start: 2, End: 3},
			{Text: "World", Start: 3, End: 4},
		},
	)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	return idx
}

func newFrame(w, h int) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range frame.Pix {
		// Uniform dark gray so overlay pixels are easy to detect.
		if i%4 == 3 {
			frame.Pix[i] = 255
		} else {
			frame.Pix[i] = 30
		}
	}
	return frame
}

func render(t *testing.T, spec overlay.Spec, idx *timing.Index, ts float64) *image.RGBA {
	t.Helper()
	comp, err := compositor.New(spec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	frame := newFrame(320, 240)
	if err := comp.Render(frame, ts, idx); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return frame
}

func TestRenderDeterministic(t *testing.T) {
	idx := helloWorldIndex(t)
	for _, mode := range []overlay.Mode{overlay.ModeHighlight, overlay.ModeGradient, overlay.ModeFill, overlay.ModeBounce} {
		spec := testSpec()
		spec.Mode = mode
		spec.Glow = overlay.Glow{Enabled: true, Radius: 3}

		first := render(t, spec, idx, 2.5)
		second := render(t, spec, idx, 2.5)
		if !bytes.Equal(first.Pix, second.Pix) {
			t.Errorf("mode %s: repeated renders differ", mode)
		}
	}
}

func TestRenderOutsideLineDrawsNothing(t *testing.T) {
	idx := helloWorldIndex(t)
	spec := testSpec()

	frame := render(t, spec, idx, 4.5)
	clean := newFrame(320, 240)
	if !bytes.Equal(frame.Pix, clean.Pix) {
		t.Fatal("expected untouched frame outside the active line")
	}
}

func TestRenderInsideLineDrawsSomething(t *testing.T) {
	idx := helloWorldIndex(t)
	spec := testSpec()

	frame := render(t, spec, idx, 2.5)
	clean := newFrame(320, 240)
	if bytes.Equal(frame.Pix, clean.Pix) {
		t.Fatal("expected overlay pixels inside the active line")
	}
}

func TestGlowHaloIsFaintAndGrowsWithRadius(t *testing.T) {
	idx := helloWorldIndex(t)
	plain := render(t, testSpec(), idx, 2.5)

	glowDiff := func(radius int) []int {
		spec := testSpec()
		spec.Glow = overlay.Glow{Enabled: true, Radius: radius}
		glowed := render(t, spec, idx, 2.5)
		var changed []int
		for i := 0; i < len(plain.Pix); i += 4 {
			if plain.Pix[i] != glowed.Pix[i] || plain.Pix[i+1] != glowed.Pix[i+1] ||
				plain.Pix[i+2] != glowed.Pix[i+2] || plain.Pix[i+3] != glowed.Pix[i+3] {
				changed = append(changed, i)
			}
		}
		if len(changed) == 0 {
			t.Fatalf("radius %d: glow changed no pixels", radius)
		}
		return changed
	}

	narrow := glowDiff(1)
	wide := glowDiff(3)
	if len(wide) <= len(narrow) {
		t.Fatalf("halo did not grow with radius: %d pixels at r=3 vs %d at r=1", len(wide), len(narrow))
	}

	// Halo pixels fade toward the highlight color but never reach it at
	// full strength.
	spec := testSpec()
	spec.Glow = overlay.Glow{Enabled: true, Radius: 3}
	glowed := render(t, spec, idx, 2.5)
	highlight := spec.HighlightColor.Color()
	for _, i := range wide {
		got := color.RGBA{R: glowed.Pix[i], G: glowed.Pix[i+1], B: glowed.Pix[i+2], A: glowed.Pix[i+3]}
		if got == highlight {
			t.Fatalf("halo pixel at offset %d is full-strength highlight", i)
		}
	}
}

// countColor tallies pixels that exactly match the given color.
func countColor(frame *image.RGBA, want color.RGBA) int {
	count := 0
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if frame.RGBAAt(x, y) == want {
				count++
			}
		}
	}
	return count
}

func TestHighlightModeSwitchesActiveWord(t *testing.T) {
	idx := helloWorldIndex(t)
	spec := testSpec()
	spec.Mode = overlay.ModeHighlight
	spec.Border.Enabled = false
	spec.Shadow.Enabled = false

	// At T=2.5 "Hello" is mid-animation (highlight), "World" has not started
	// (base). Both colors must be present.
	frame := render(t, spec, idx, 2.5)
	if countColor(frame, spec.HighlightColor.Color()) == 0 {
		t.Error("expected highlight-colored pixels for the active word")
	}
	if countColor(frame, spec.BaseColor.Color()) == 0 {
		t.Error("expected base-colored pixels for the pending word")
	}

	// Before the line's first word starts animating, everything is base.
	frame = render(t, spec, idx, 2.0)
	if countColor(frame, spec.HighlightColor.Color()) != 0 {
		t.Error("expected no highlight pixels at word start")
	}
}

func TestFillModeGrowsWithProgress(t *testing.T) {
	idx := helloWorldIndex(t)
	spec := testSpec()
	spec.Mode = overlay.ModeFill
	spec.Border.Enabled = false
	spec.Shadow.Enabled = false

	early := countColor(render(t, spec, idx, 2.25), spec.HighlightColor.Color())
	late := countColor(render(t, spec, idx, 2.9), spec.HighlightColor.Color())
	if late <= early {
		t.Fatalf("fill coverage should grow with progress: early=%d late=%d", early, late)
	}
}

func TestBounceModeShiftsWordVertically(t *testing.T) {
	idx := helloWorldIndex(t)
	spec := testSpec()
	spec.Mode = overlay.ModeBounce
	spec.Border.Enabled = false
	spec.Shadow.Enabled = false

	mid := render(t, spec, idx, 2.5) // sin peak for "Hello"
	start := render(t, spec, idx, 2.0)
	if bytes.Equal(mid.Pix, start.Pix) {
		t.Fatal("expected bounce offset to move pixels between progress 0 and 0.5")
	}
}

func TestLineWithoutWordSpansStillRenders(t *testing.T) {
	idx, err := timing.NewIndex(
		[]timing.Line{{Start: 0, End: 2, Text: "Instrumental"}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	frame := render(t, testSpec(), idx, 1)
	clean := newFrame(320, 240)
	if bytes.Equal(frame.Pix, clean.Pix) {
		t.Fatal("expected the bare line text to render as a single unit")
	}
}
