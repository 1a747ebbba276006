package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"chorus/internal/overlay"
	"chorus/internal/timing"
)

// Compositor draws time-synchronized word overlays onto frames. Rendering is
// pure with respect to its inputs: identical (frame, timestamp, timing,
// spec) yield byte-identical output, because interactive preview and the
// final render share this exact code path.
//
// The embedded typeface guarantees determinism across hosts; no system font
// lookup is involved. A Compositor is not safe for concurrent use (the
// underlying font face buffers glyph rasterization); each render job owns
// its own instance.
type Compositor struct {
	spec     overlay.Spec
	face     font.Face
	ascent   int
	gradient [gradientSteps + 1]color.RGBA
}

const gradientSteps = 100

// New builds a compositor for a normalized overlay spec.
func New(spec overlay.Spec) (*Compositor, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(spec.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build font face: %w", err)
	}

	c := &Compositor{
		spec:   spec,
		face:   face,
		ascent: face.Metrics().Ascent.Ceil(),
	}
	base := spec.BaseColor.Color()
	highlight := spec.HighlightColor.Color()
	for i := 0; i <= gradientSteps; i++ {
		c.gradient[i] = lerpColor(base, highlight, float64(i)/gradientSteps)
	}
	return c, nil
}

// Render composites the overlay for timestamp t onto frame in place. When no
// subtitle line is active the frame is left untouched.
func (c *Compositor) Render(frame *image.RGBA, t float64, idx *timing.Index) error {
	active, ok := idx.LineAt(t)
	if !ok {
		return nil
	}

	words := active.Words
	if len(words) == 0 {
		// A line without word spans animates as a single unit.
		words = []timing.Word{{Text: active.Line.Text, Start: active.Line.Start, End: active.Line.End}}
	}

	rows, err := c.layout(frame.Bounds(), words)
	if err != nil {
		return err
	}

	for _, row := range rows {
		for _, placed := range row {
			c.drawWord(frame, placed, t)
		}
	}
	return nil
}

// drawWord renders one word with the full layer stack at its laid-out
// position: shadow, border, fill, then glow.
func (c *Compositor) drawWord(frame *image.RGBA, placed placedWord, t float64) {
	progress := wordProgress(placed.word, t, c.spec.AnimationSpeed)
	fill := c.fillColor(progress)

	x, y := placed.x, placed.baseline
	if c.spec.Mode == overlay.ModeBounce {
		y -= bounceOffset(progress, c.spec.FontSize)
	}

	if c.spec.Shadow.Enabled && c.spec.Shadow.Color != nil {
		c.drawString(frame, placed.word.Text, x+c.spec.Shadow.OffsetX, y+c.spec.Shadow.OffsetY, c.spec.Shadow.Color.Color())
	}
	if c.spec.Border.Enabled && c.spec.Border.Color != nil {
		w := c.spec.Border.Width
		borderColor := c.spec.Border.Color.Color()
		for _, off := range outlineOffsets {
			c.drawString(frame, placed.word.Text, x+off.x*w, y+off.y*w, borderColor)
		}
	}

	if c.spec.Mode == overlay.ModeFill {
		c.drawString(frame, placed.word.Text, x, y, c.spec.BaseColor.Color())
		if progress > 0 {
			clipWidth := int(progress * float64(placed.width))
			if clipWidth > 0 {
				clip := image.Rect(x, frame.Bounds().Min.Y, x+clipWidth, frame.Bounds().Max.Y)
				if dst, ok := frame.SubImage(clip).(*image.RGBA); ok {
					c.drawStringInto(dst, placed.word.Text, x, y, c.spec.HighlightColor.Color())
				}
			}
		}
	} else {
		c.drawString(frame, placed.word.Text, x, y, fill)
	}

	if c.spec.Glow.Enabled {
		r := c.spec.Glow.Radius
		if r < 1 {
			r = 1
		}
		glow := attenuate(c.spec.HighlightColor.Color(), 4*r)
		for _, off := range glowOffsets(r) {
			c.drawString(frame, placed.word.Text, x+off.X, y+off.Y, glow)
		}
	}
}

// fillColor resolves the word fill for the active highlight mode.
func (c *Compositor) fillColor(progress float64) color.RGBA {
	switch c.spec.Mode {
	case overlay.ModeHighlight:
		if progress > 0 && progress < 1 {
			return c.spec.HighlightColor.Color()
		}
		return c.spec.BaseColor.Color()
	case overlay.ModeGradient, overlay.ModeBounce:
		step := int(progress*gradientSteps + 0.5)
		if step < 0 {
			step = 0
		}
		if step > gradientSteps {
			step = gradientSteps
		}
		return c.gradient[step]
	default:
		return c.spec.BaseColor.Color()
	}
}

func (c *Compositor) drawString(dst *image.RGBA, text string, x, y int, col color.RGBA) {
	c.drawStringInto(dst, text, x, y, col)
}

func (c *Compositor) drawStringInto(dst draw.Image, text string, x, y int, col color.RGBA) {
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

func (c *Compositor) measure(text string) int {
	return font.MeasureString(c.face, text).Ceil()
}

// wordProgress is the clamped animation progress scaled by the configured
// speed, clamped again so a fast animation saturates instead of overshooting.
func wordProgress(w timing.Word, t, speed float64) float64 {
	p := timing.Progress(w, t) * speed
	if p > 1 {
		return 1
	}
	return p
}

// attenuate divides all four channels of a premultiplied color by den. The
// color channels scale with the alpha, so the result stays valid
// premultiplied RGBA.
func attenuate(col color.RGBA, den int) color.RGBA {
	d := uint32(den)
	return color.RGBA{
		R: uint8(uint32(col.R) / d),
		G: uint8(uint32(col.G) / d),
		B: uint8(uint32(col.B) / d),
		A: uint8(uint32(col.A) / d),
	}
}

// glowOffsets enumerates every lattice point of the radius-r disc except the
// origin, in raster order. Each offset receives one faint halo pass, so the
// stacked passes fade the glyph outward instead of stamping ghost copies at
// the rim.
func glowOffsets(radius int) []image.Point {
	offsets := make([]image.Point, 0, (2*radius+1)*(2*radius+1)-1)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			offsets = append(offsets, image.Point{X: dx, Y: dy})
		}
	}
	return offsets
}

// outlineOffsets are the eight neighbor directions used for border passes.
// Fixed order keeps output byte-stable.
var outlineOffsets = [8]struct{ x, y int }{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t + 0.5),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t + 0.5),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t + 0.5),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t + 0.5),
	}
}
