package bar

import "io"

// SlotInfo is a snapshot of one slot handed to the Engine.
type SlotInfo struct {
	Pos    int
	Label  string
	Size   int64 // negative when the expected size is unknown
	Done   int64
	Active bool

	// Started is set once Begin was called for the current registration.
	Started bool
}

// Ratio returns the completed fraction, or -1 when the size is unknown.
func (s SlotInfo) Ratio() float64 {
	if s.Size < 0 {
		return -1
	}
	if s.Size == 0 {
		return 0
	}
	r := float64(s.Done) / float64(s.Size)
	if r > 1 {
		r = 1
	}
	return r
}

// Engine turns slot data into terminal output.
//
// The Display calls every method with its gate held, so implementations
// need no locking of their own and must never call back into the Display.
// Lines are addressed bottom-up relative to the cursor: slot pos sits
// lines-pos rows above the cursor.
type Engine interface {
	// SetLines tells the engine how many screen lines are reserved.
	SetLines(n int)

	// SetWidth updates the terminal width in columns.
	SetWidth(cols int)

	// RegisterSlot resets any cached state for pos before a new worker uses it.
	RegisterSlot(pos int)

	// BeginSlot is called once a worker knows its label and size.
	BeginSlot(s SlotInfo)

	// DeregisterSlot draws the final state of a slot that is being released.
	// A slot that was never started keeps whatever Print left on its line.
	DeregisterSlot(s SlotInfo) error

	// Repaint draws the given started slots. Implementations may skip
	// lines that did not change since the last draw.
	Repaint(slots []SlotInfo) error

	// Invalidate forces the next Repaint to draw every line.
	Invalidate()

	// Print writes a free-form status text into the line of pos.
	Print(pos int, text string) error

	// Close releases the engine. No method is called afterwards.
	Close() error
}

// EngineFactory creates an Engine writing to w, with lines screen lines
// reserved and a terminal cols columns wide.
type EngineFactory func(w io.Writer, lines, cols int) (Engine, error)
