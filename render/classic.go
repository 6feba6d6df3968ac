package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/baack/wget2/bar"
)

// Classic draws one fixed-layout line per slot:
//
//	label                xxx% [=========>          ] 1.2 MB
//
// A slot with unknown size shows a bouncing <=> marker instead of a
// percentage. Lines are only rewritten when their text changes.
type Classic struct {
	lw    lineWriter
	width int
	drawn map[int]string
	state map[int]*bounce
}

// bounce tracks the indeterminate marker of a slot with unknown size.
type bounce struct {
	pos  int
	dir  int
	last int64
}

// NewClassic is a bar.EngineFactory for the Classic engine.
func NewClassic(w io.Writer, lines, cols int) (bar.Engine, error) {
	if w == nil {
		return nil, fmt.Errorf("classic engine: nil writer")
	}
	return &Classic{
		lw:    lineWriter{w: w, lines: lines},
		width: cols,
		drawn: make(map[int]string),
		state: make(map[int]*bounce),
	}, nil
}

func (c *Classic) SetLines(n int) { c.lw.lines = n }

func (c *Classic) SetWidth(cols int) {
	c.width = cols
	c.Invalidate()
}

func (c *Classic) RegisterSlot(pos int) {
	delete(c.drawn, pos)
	delete(c.state, pos)
}

func (c *Classic) BeginSlot(s bar.SlotInfo) {
	delete(c.drawn, s.Pos)
	delete(c.state, s.Pos)
}

func (c *Classic) DeregisterSlot(s bar.SlotInfo) error {
	defer func() {
		delete(c.drawn, s.Pos)
		delete(c.state, s.Pos)
	}()
	if !s.Started {
		return nil
	}
	return c.lw.at(s.Pos, c.format(s))
}

func (c *Classic) Repaint(slots []bar.SlotInfo) error {
	for _, s := range slots {
		line := c.format(s)
		if c.drawn[s.Pos] == line {
			continue
		}
		if err := c.lw.at(s.Pos, line); err != nil {
			return err
		}
		c.drawn[s.Pos] = line
	}
	return nil
}

func (c *Classic) Invalidate() {
	clear(c.drawn)
}

// Print overwrites the meter of pos with text until the slot next changes.
func (c *Classic) Print(pos int, text string) error {
	w := meterWidth(c.width)
	return c.lw.atColumn(pos, printColumn, fmt.Sprintf("[%-*.*s]", w, w, text))
}

func (c *Classic) Close() error { return nil }

func (c *Classic) format(s bar.SlotInfo) string {
	w := meterWidth(c.width)

	var pct, meter string
	if r := s.Ratio(); r < 0 {
		pct = "  -%"
		meter = c.bounceMeter(s, w)
	} else {
		pct = fmt.Sprintf("%3d%%", int(r*100))
		meter = fillMeter(r, w)
	}

	done := s.Done
	if done < 0 {
		done = 0
	}
	return fmt.Sprintf("%s %s [%s] %8s",
		fitLabel(s.Label, labelWidth), pct, meter, humanize.Bytes(uint64(done)))
}

// fillMeter draws "====>   " with the arrow at ratio r of width w.
func fillMeter(r float64, w int) string {
	n := int(r * float64(w))
	switch {
	case n <= 0:
		return strings.Repeat(" ", w)
	case n >= w:
		return strings.Repeat("=", w)
	}
	return strings.Repeat("=", n-1) + ">" + strings.Repeat(" ", w-n)
}

// bounceMeter moves the <=> marker one step each time new data arrived.
func (c *Classic) bounceMeter(s bar.SlotInfo, w int) string {
	const marker = "<=>"
	span := w - len(marker)
	if span < 0 {
		return strings.Repeat(" ", w)
	}

	b, ok := c.state[s.Pos]
	if !ok {
		b = &bounce{dir: 1, last: s.Done}
		c.state[s.Pos] = b
	} else if s.Done != b.last {
		b.last = s.Done
		b.pos += b.dir
		if b.pos >= span {
			b.pos, b.dir = span, -1
		} else if b.pos <= 0 {
			b.pos, b.dir = 0, 1
		}
	}
	return strings.Repeat(" ", b.pos) + marker + strings.Repeat(" ", span-b.pos)
}
