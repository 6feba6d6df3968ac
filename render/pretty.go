package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/schollz/progressbar/v3"

	"github.com/baack/wget2/bar"
)

// Pretty draws each slot with a progressbar.ProgressBar. The bars render
// into a private buffer; the last frame is lifted out and placed on the
// slot's line, so they never touch the terminal themselves.
type Pretty struct {
	lw    lineWriter
	width int
	slots map[int]*prettySlot
}

type prettySlot struct {
	pb    *progressbar.ProgressBar
	buf   bytes.Buffer
	label string
	size  int64
	frame string
	drawn string
}

// NewPretty is a bar.EngineFactory for the Pretty engine.
func NewPretty(w io.Writer, lines, cols int) (bar.Engine, error) {
	if w == nil {
		return nil, fmt.Errorf("pretty engine: nil writer")
	}
	return &Pretty{
		lw:    lineWriter{w: w, lines: lines},
		width: cols,
		slots: make(map[int]*prettySlot),
	}, nil
}

func (p *Pretty) SetLines(n int) { p.lw.lines = n }

func (p *Pretty) SetWidth(cols int) {
	p.width = cols
	// Bar widths are fixed at creation; rebuild them on next use.
	for pos, ps := range p.slots {
		p.slots[pos] = p.newSlot(ps.label, ps.size)
	}
}

func (p *Pretty) RegisterSlot(pos int) {
	delete(p.slots, pos)
}

func (p *Pretty) BeginSlot(s bar.SlotInfo) {
	p.slots[s.Pos] = p.newSlot(s.Label, s.Size)
}

func (p *Pretty) DeregisterSlot(s bar.SlotInfo) error {
	if !s.Started {
		delete(p.slots, s.Pos)
		return nil
	}
	ps := p.slot(s)
	err := ps.advance(s.Done)
	delete(p.slots, s.Pos)
	if werr := p.lw.at(s.Pos, p.fit(ps.frame)); err == nil {
		err = werr
	}
	return err
}

func (p *Pretty) Repaint(slots []bar.SlotInfo) error {
	for _, s := range slots {
		ps := p.slot(s)
		if err := ps.advance(s.Done); err != nil {
			return err
		}
		line := p.fit(ps.frame)
		if line == ps.drawn {
			continue
		}
		if err := p.lw.at(s.Pos, line); err != nil {
			return err
		}
		ps.drawn = line
	}
	return nil
}

func (p *Pretty) Invalidate() {
	for _, ps := range p.slots {
		ps.drawn = ""
	}
}

// Print replaces the slot line with text until the slot next changes.
func (p *Pretty) Print(pos int, text string) error {
	if ps, ok := p.slots[pos]; ok {
		ps.drawn = ""
	}
	return p.lw.at(pos, p.fit(text))
}

func (p *Pretty) Close() error {
	clear(p.slots)
	return nil
}

// slot returns the bar for s, creating one for workers that never called
// Begin.
func (p *Pretty) slot(s bar.SlotInfo) *prettySlot {
	ps, ok := p.slots[s.Pos]
	if !ok {
		ps = p.newSlot(s.Label, s.Size)
		p.slots[s.Pos] = ps
	}
	return ps
}

func (p *Pretty) newSlot(label string, size int64) *prettySlot {
	ps := &prettySlot{label: label, size: size}

	total := size
	if total <= 0 {
		total = -1
	}
	ps.pb = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(&ps.buf),
		progressbar.OptionSetDescription(fitLabel(label, labelWidth)),
		progressbar.OptionSetWidth(p.barWidth()),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(0),
		progressbar.OptionSpinnerType(14),
	)
	ps.frame = lastFrame(ps.buf.String())
	ps.buf.Reset()
	return ps
}

// barWidth leaves room for the label, percentage and byte/rate counters
// progressbar prints around the saucer.
func (p *Pretty) barWidth() int {
	w := p.width - 1 - labelWidth - 40
	if w < 10 {
		return 10
	}
	return w
}

func (p *Pretty) fit(frame string) string {
	w := p.width - 1
	if runewidth.StringWidth(frame) > w {
		frame = runewidth.Truncate(frame, w, "")
	}
	return runewidth.FillRight(frame, w)
}

// advance moves the bar to done and keeps the latest rendered frame.
func (ps *prettySlot) advance(done int64) error {
	if done < 0 {
		done = 0
	}
	if ps.size > 0 && done > ps.size {
		done = ps.size
	}
	err := ps.pb.Set64(done)
	if f := lastFrame(ps.buf.String()); f != "" {
		ps.frame = f
	}
	ps.buf.Reset()
	return err
}

// lastFrame extracts the final carriage-return separated frame from raw
// progressbar output.
func lastFrame(raw string) string {
	parts := strings.Split(raw, "\r")
	for i := len(parts) - 1; i >= 0; i-- {
		if f := strings.TrimRight(parts[i], " \n"); f != "" {
			return f
		}
	}
	return ""
}
