package compositor

import (
	"fmt"
	"image"
	"math"

	"chorus/internal/timing"
)

// placedWord is a word with its resolved pixel position.
type placedWord struct {
	word     timing.Word
	x        int
	baseline int
	width    int
}

// layout measures the words, wraps them into rows, and centers the block
// around the configured anchor. The result is fully determined by the
// inputs; no randomness or map iteration is involved.
func (c *Compositor) layout(bounds image.Rectangle, words []timing.Word) ([][]placedWord, error) {
	frameWidth := bounds.Dx()
	frameHeight := bounds.Dy()
	if frameWidth <= 0 || frameHeight <= 0 {
		return nil, fmt.Errorf("layout: empty frame bounds %v", bounds)
	}

	maxWidth := c.spec.MaxLineWidth
	if maxWidth <= 0 || maxWidth > frameWidth {
		// Leave a margin so border and shadow passes stay on the frame.
		maxWidth = frameWidth * 9 / 10
	}

	widths := make([]int, len(words))
	for i, w := range words {
		widths[i] = c.measure(w.Text)
	}

	var rows [][]int // word indexes per row
	if c.spec.AutoWrap {
		rows = wrapGreedy(widths, c.spec.WordSpacing, maxWidth)
	} else {
		row := make([]int, len(words))
		for i := range words {
			row[i] = i
		}
		rows = [][]int{row}
	}

	advance := int(math.Round(float64(c.spec.FontSize) * c.spec.LineHeight))
	blockHeight := advance * len(rows)
	anchorY := int(math.Round(c.spec.Anchor * float64(frameHeight)))
	top := bounds.Min.Y + anchorY - blockHeight/2

	placed := make([][]placedWord, len(rows))
	for r, row := range rows {
		rowWidth := 0
		for i, idx := range row {
			if i > 0 {
				rowWidth += c.spec.WordSpacing
			}
			rowWidth += widths[idx]
		}
		x := bounds.Min.X + (frameWidth-rowWidth)/2
		baseline := top + r*advance + c.ascent

		line := make([]placedWord, 0, len(row))
		for _, idx := range row {
			line = append(line, placedWord{
				word:     words[idx],
				x:        x,
				baseline: baseline,
				width:    widths[idx],
			})
			x += widths[idx] + c.spec.WordSpacing
		}
		placed[r] = line
	}
	return placed, nil
}

// wrapGreedy packs word indexes into rows not exceeding maxWidth. A word
// wider than maxWidth occupies a row of its own rather than failing.
func wrapGreedy(widths []int, spacing, maxWidth int) [][]int {
	var rows [][]int
	var current []int
	currentWidth := 0

	for i, w := range widths {
		candidate := currentWidth
		if len(current) > 0 {
			candidate += spacing
		}
		candidate += w

		if len(current) > 0 && candidate > maxWidth {
			rows = append(rows, current)
			current = nil
			candidate = w
		}
		current = append(current, i)
		currentWidth = candidate
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	return rows
}

// bounceOffset is the vertical displacement for the bounce mode: a half sine
// arc over the word's progress, scaled to a quarter of the font size.
func bounceOffset(progress float64, fontSize int) int {
	amplitude := float64(fontSize) / 4
	return int(math.Round(math.Sin(progress*math.Pi) * amplitude))
}
