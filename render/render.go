// Package render provides the terminal engines that draw bar slots.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/baack/wget2/bar"
)

const (
	// labelWidth is the number of columns reserved for the slot label.
	labelWidth = 20

	// decoration is the width of everything on a slot line except the
	// meter: label, space, "xxx%", space, two brackets, space, 8 columns
	// of byte count.
	decoration = labelWidth + 1 + 4 + 1 + 2 + 1 + 8

	// printColumn is the 1-based column of the opening meter bracket.
	printColumn = labelWidth + 1 + 4 + 1 + 1

	minMeterWidth = 4
)

// Names lists the engines accepted by ByName.
var Names = []string{"classic", "pretty"}

// ByName returns the engine factory registered under name.
func ByName(name string) (bar.EngineFactory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "classic":
		return NewClassic, nil
	case "pretty":
		return NewPretty, nil
	}
	return nil, fmt.Errorf("unknown progress engine %q (want one of %s)",
		name, strings.Join(Names, ", "))
}

// meterWidth returns the number of columns available inside the brackets.
func meterWidth(cols int) int {
	w := cols - 1 - decoration
	if w < minMeterWidth {
		return minMeterWidth
	}
	return w
}

// fitLabel truncates or pads label to exactly width display columns.
func fitLabel(label string, width int) string {
	label = strings.Map(func(r rune) rune {
		if r < ' ' {
			return ' '
		}
		return r
	}, label)
	if runewidth.StringWidth(label) > width {
		label = runewidth.Truncate(label, width, "")
	}
	return runewidth.FillRight(label, width)
}

// lineWriter positions output on bar lines relative to the cursor, which
// sits just below the reserved region.
type lineWriter struct {
	w     io.Writer
	lines int
}

// at writes s on the line of pos, leaving the cursor where it was.
func (lw *lineWriter) at(pos int, s string) error {
	_, err := fmt.Fprintf(lw.w, "\033[s\033[%dA\033[1G%s\033[u", lw.lines-pos, s)
	return err
}

// atColumn writes s on the line of pos starting at column col.
func (lw *lineWriter) atColumn(pos, col int, s string) error {
	_, err := fmt.Fprintf(lw.w, "\033[s\033[%dA\033[%dG%s\033[u", lw.lines-pos, col, s)
	return err
}
