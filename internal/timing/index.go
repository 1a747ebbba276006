// Package timing maps timestamps to the active subtitle line and the word
// spans it contains. The index is immutable after construction and safe for
// concurrent readers.
package timing

import (
	"fmt"
	"sort"
	"strings"
)

// Line is a subtitle line active over [Start, End).
type Line struct {
	Start float64
	End   float64
	Text  string
}

// Word is a timed word span driving per-word animation progress.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// ActiveLine is a resolved line together with the word spans it contains, in
// start-time order.
type ActiveLine struct {
	Line  Line
	Words []Word
}

// Index resolves timestamps to lines and their words.
type Index struct {
	lines []Line
	words [][]Word // parallel to lines
}

// NewIndex validates and indexes subtitle lines and word spans. Lines need
// not tile the timeline; gaps are allowed. A word span belongs to the first
// line that time-contains it; spans outside every line are ignored.
func NewIndex(lines []Line, words []Word) (*Index, error) {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i, line := range sorted {
		if line.End < line.Start {
			return nil, fmt.Errorf("line %q: end %.3f before start %.3f", line.Text, line.End, line.Start)
		}
		if i > 0 && line.Start < sorted[i-1].End {
			return nil, fmt.Errorf("line %q overlaps previous line", line.Text)
		}
	}

	idx := &Index{
		lines: sorted,
		words: make([][]Word, len(sorted)),
	}

	ordered := make([]Word, 0, len(words))
	for _, w := range words {
		if w.End < w.Start {
			return nil, fmt.Errorf("word %q: end %.3f before start %.3f", w.Text, w.End, w.Start)
		}
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		ordered = append(ordered, w)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	for _, w := range ordered {
		for i, line := range sorted {
			if w.Start >= line.Start && w.End <= line.End {
				idx.words[i] = append(idx.words[i], w)
				break
			}
		}
	}

	return idx, nil
}

// LineAt returns the line containing t, if any. At most one line is active at
// any timestamp; the interval is half-open so a line's end does not overlap
// the next line's start.
func (idx *Index) LineAt(t float64) (ActiveLine, bool) {
	n := len(idx.lines)
	i := sort.Search(n, func(i int) bool { return idx.lines[i].End > t })
	if i >= n || t < idx.lines[i].Start {
		return ActiveLine{}, false
	}
	return ActiveLine{Line: idx.lines[i], Words: idx.words[i]}, true
}

// AnyLineIn reports whether any line intersects the half-open interval
// [from, to). The frame pipeline uses this to skip compositing batches with
// no overlay at all.
func (idx *Index) AnyLineIn(from, to float64) bool {
	for _, line := range idx.lines {
		if line.Start < to && line.End > from {
			return true
		}
	}
	return false
}

// Lines returns the indexed lines in start order.
func (idx *Index) Lines() []Line {
	cp := make([]Line, len(idx.lines))
	copy(cp, idx.lines)
	return cp
}

// Progress returns the animation progress of a word at time t, clamped to
// [0, 1]. Zero-length spans report 1 at and after their start.
func Progress(w Word, t float64) float64 {
	if t < w.Start {
		return 0
	}
	span := w.End - w.Start
	if span <= 0 {
		return 1
	}
	p := (t - w.Start) / span
	if p > 1 {
		return 1
	}
	return p
}
