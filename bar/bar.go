// Package bar renders per-worker download progress as a block of lines at
// the bottom of the terminal and lets log output scroll past it.
//
// A Display owns the whole bar region. One mutex (the gate) serializes every
// access to the slot table, the render engine and the output stream, so the
// redraw loop, workers posting status and the logger never interleave their
// terminal writes. Gate-guarded methods never call each other while holding
// the gate; helpers that expect it held carry a Locked suffix.
//
// Usage:
//
//	d := bar.New(bar.Options{Workers: 4, Engine: render.NewClassic})
//	if err := d.Start(); err != nil {
//	    // progress display stays disabled, downloads continue
//	}
//	defer d.Stop()
//
//	w := d.RegisterWorker(0)
//	w.Begin("file.zip", size)
//	io.Copy(io.MultiWriter(out, w), body)
//	w.Deregister()
package bar

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	// DefaultInterval is the redraw cadence.
	DefaultInterval = 125 * time.Millisecond

	// DefaultScreenWidth is used when the terminal width cannot be determined.
	DefaultScreenWidth = 70

	// MinimumScreenWidth is the narrowest width the bar is laid out for.
	MinimumScreenWidth = 45
)

var (
	// ErrDisabled is returned by Start after a previous start failed.
	ErrDisabled = errors.New("bar: progress display disabled")

	// ErrNotTerminal is returned by Start when the output is not a terminal
	// and Options.Force is not set.
	ErrNotTerminal = errors.New("bar: output is not a terminal")

	// ErrNoEngine is returned by Start when no EngineFactory was configured.
	ErrNoEngine = errors.New("bar: no render engine configured")
)

// Options configures a Display.
type Options struct {
	// Output is the terminal stream. Default: os.Stdout
	Output io.Writer

	// Workers is the initial worker-pool size.
	Workers int

	// Interval is the redraw cadence. Default: 125ms
	Interval time.Duration

	// Engine creates the render engine.
	Engine EngineFactory

	// Width overrides terminal width detection when > 0.
	Width int

	// Force draws the bar even when Output is not a terminal.
	Force bool
}

// Display is the shared state of the bar region.
type Display struct {
	opts Options

	mu       sync.Mutex // the gate
	out      *bufio.Writer
	engine   Engine
	slots    []*slot
	lines    int
	width    int
	running  bool
	disabled bool
	err      error

	cancel     context.CancelFunc
	stopResize func()
	wg         sync.WaitGroup
}

// New creates a Display. Nothing is written until Start is called.
func New(opts Options) *Display {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Display{opts: opts}
}

// Start reserves the bar lines, creates the render engine and launches the
// redraw loop. On failure the Display releases everything it allocated and
// stays disabled for the rest of the process; every other method is then a
// no-op.
func (d *Display) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	if d.disabled {
		return ErrDisabled
	}

	if err := d.startLocked(); err != nil {
		d.releaseLocked()
		d.disabled = true
		return err
	}
	return nil
}

func (d *Display) startLocked() error {
	if d.opts.Engine == nil {
		return ErrNoEngine
	}

	fd, isTerm := terminalFd(d.opts.Output)
	if !isTerm && !d.opts.Force {
		return ErrNotTerminal
	}

	d.width = screenWidth(d.opts.Width, fd, isTerm)
	d.out = bufio.NewWriter(d.opts.Output)
	d.slots = make([]*slot, d.opts.Workers)
	for i := range d.slots {
		d.slots[i] = newSlot()
	}
	d.lines = d.opts.Workers + 1

	engine, err := d.opts.Engine(d.out, d.lines, d.width)
	if err != nil {
		return fmt.Errorf("create render engine: %w", err)
	}
	if engine == nil {
		return ErrNoEngine
	}
	d.engine = engine

	// Make room for the bar below the current cursor position.
	d.out.WriteString(strings.Repeat("\n", d.lines))
	if err := d.out.Flush(); err != nil {
		return fmt.Errorf("reserve bar lines: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	var resize <-chan os.Signal
	resize, d.stopResize = notifyResize()

	d.running = true
	d.wg.Add(1)
	go d.run(ctx, d.opts.Interval, resize)

	return nil
}

// Stop signals the redraw loop, waits for it to exit and then releases the
// render engine. Workers are not deregistered on the caller's behalf.
// After Stop returns nothing more is written to the output.
func (d *Display) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.mu.Unlock()

	// The loop needs the gate to finish an in-flight repaint, so wait
	// without holding it.
	cancel()
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseLocked()
}

// releaseLocked tears down everything Start allocated. Safe to call twice.
func (d *Display) releaseLocked() {
	if d.stopResize != nil {
		d.stopResize()
		d.stopResize = nil
	}
	if d.engine != nil {
		if err := d.engine.Close(); err != nil {
			d.recordErrLocked(err)
		}
		d.engine = nil
	}
	if d.out != nil {
		d.flushLocked()
	}
	d.cancel = nil
	d.slots = nil
	d.running = false
}

// Enabled reports whether the bar is currently being drawn.
func (d *Display) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Err returns the first output error seen since Start, if any.
// Output errors never stop the display; they are only remembered.
func (d *Display) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Lines returns the number of screen lines reserved for the bar.
func (d *Display) Lines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lines
}

// Repaint draws the current slot state once.
func (d *Display) Repaint() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	d.repaintLocked()
	d.flushLocked()
}

// Print writes text into the status area of the slot line at pos.
func (d *Display) Print(pos int, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || pos < 0 || pos >= d.lines {
		return
	}
	if err := d.engine.Print(pos, text); err != nil {
		d.recordErrLocked(err)
	}
	d.flushLocked()
}

// Printf formats according to a format specifier and prints the result into
// the slot line at pos.
func (d *Display) Printf(pos int, format string, args ...any) {
	d.Print(pos, fmt.Sprintf(format, args...))
}

func (d *Display) repaintLocked() {
	if err := d.engine.Repaint(d.snapshotLocked()); err != nil {
		d.recordErrLocked(err)
	}
}

func (d *Display) snapshotLocked() []SlotInfo {
	infos := make([]SlotInfo, 0, len(d.slots))
	for pos, s := range d.slots {
		if s.active && s.started {
			infos = append(infos, s.info(pos))
		}
	}
	return infos
}

func (d *Display) flushLocked() {
	if err := d.out.Flush(); err != nil {
		d.recordErrLocked(err)
	}
}

func (d *Display) recordErrLocked(err error) {
	if d.err == nil {
		d.err = err
	}
}

// refreshWidthLocked re-reads the terminal width after a window change.
func (d *Display) refreshWidthLocked() {
	if !d.running || d.opts.Width > 0 {
		return
	}
	fd, isTerm := terminalFd(d.opts.Output)
	width := screenWidth(0, fd, isTerm)
	if width == d.width {
		return
	}
	d.width = width
	d.engine.SetWidth(width)
	d.engine.Invalidate()
}

func terminalFd(w io.Writer) (int, bool) {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return -1, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func screenWidth(override, fd int, isTerm bool) int {
	width := override
	if width <= 0 && isTerm {
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
	}
	if width <= 0 {
		return DefaultScreenWidth
	}
	if width < MinimumScreenWidth {
		return MinimumScreenWidth
	}
	return width
}
