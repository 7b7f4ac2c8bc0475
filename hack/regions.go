// Copyright © 2024 The ELPS authors

package hack

import (
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/diagnostic"
)

// Color classifies a region of hh_client --color output.
type Color string

const (
	ColorDefault   Color = "default"
	ColorChecked   Color = "checked"
	ColorPartial   Color = "partial"
	ColorUnchecked Color = "unchecked"
)

// Region is one element of the hh_client --color --json array. Joining the
// texts of all regions reproduces the file.
type Region struct {
	Color Color  `json:"color"`
	Text  string `json:"text"`
}

func (c Color) uncovered() bool {
	return c == ColorPartial || c == ColorUnchecked
}

// ConvertRegions computes a coverage result from typed regions.
//
// Each region is split into per-line segments and whitespace at either end
// of a segment is ignored; segments that are all whitespace do not count.
// Partial and unchecked segments become uncovered ranges, and consecutive
// uncovered segments on one line are merged. The percentage is the share
// of checked segments among checked, partial and unchecked ones, or 100
// when there are none.
func ConvertRegions(regions []Region) *coverage.Result {
	var (
		line, col int
		checked   int
		total     int
		ranges    []coverage.Range
		// merging is true while the last counted segment on this line was
		// uncovered.
		merging bool
	)
	for _, r := range regions {
		parts := strings.Split(r.Text, "\n")
		for i, part := range parts {
			if i > 0 {
				line++
				col = 0
				merging = false
			}
			start, end, ok := trimmedBounds(part)
			if ok {
				switch {
				case r.Color == ColorChecked:
					checked++
					total++
					merging = false
				case r.Color.uncovered():
					total++
					rng := diagnostic.NewRange(line, col+start, line, col+end)
					if merging {
						ranges[len(ranges)-1].End = rng.End
					} else {
						ranges = append(ranges, rng)
					}
					merging = true
				default:
					merging = false
				}
			}
			col += utf16Len(part)
		}
	}

	pct := 100.0
	if total > 0 {
		pct = float64(checked) / float64(total) * 100
	}
	if ranges == nil {
		ranges = []coverage.Range{}
	}
	return &coverage.Result{Percentage: pct, UncoveredRanges: ranges}
}

// trimmedBounds returns the UTF-16 offsets of the non-whitespace part of s.
// Columns are counted in UTF-16 code units, as LSP positions are.
func trimmedBounds(s string) (start, end int, ok bool) {
	trimmed := strings.TrimLeftFunc(s, unicode.IsSpace)
	start = utf16Len(s[:len(s)-len(trimmed)])
	trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	end = start + utf16Len(trimmed)
	return start, end, trimmed != ""
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
