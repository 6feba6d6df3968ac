package bar

import (
	"strings"
	"sync/atomic"
)

// slot is one line of the bar region. label, size and active are guarded by
// the gate; done is written by the owning worker without it.
type slot struct {
	label   string
	size    int64
	done    atomic.Int64
	active  bool
	started bool
}

func newSlot() *slot {
	return &slot{size: -1}
}

func (s *slot) info(pos int) SlotInfo {
	return SlotInfo{
		Pos:     pos,
		Label:   s.label,
		Size:    s.size,
		Done:    s.done.Load(),
		Active:  s.active,
		Started: s.started,
	}
}

// Register binds a worker to a free slot and returns its position. hint is
// the preferred position, usually the worker's ordinal in the pool; when it
// is taken or out of range the lowest free slot is used instead. Returns -1
// when every slot is busy or the display is not running.
func (d *Display) Register(hint int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return -1
	}

	pos := d.allocLocked(hint)
	if pos < 0 {
		return -1
	}

	s := d.slots[pos]
	s.active = true
	s.started = false
	s.label = ""
	s.size = -1
	s.done.Store(0)
	d.engine.RegisterSlot(pos)

	return pos
}

func (d *Display) allocLocked(hint int) int {
	if hint >= 0 && hint < len(d.slots) && !d.slots[hint].active {
		return hint
	}
	for pos, s := range d.slots {
		if !s.active {
			return pos
		}
	}
	return -1
}

// Begin sets the label and expected size of a registered slot. A negative
// size means the size is unknown.
func (d *Display) Begin(pos int, label string, size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.activeSlotLocked(pos)
	if s == nil {
		return
	}
	s.label = label
	s.size = size
	s.started = true
	s.done.Store(0)
	d.engine.BeginSlot(s.info(pos))
}

// Update records the number of bytes completed for pos. It takes the gate
// to find the slot but never redraws; the redraw loop picks the value up on
// its next tick. Worker.Set is the lock-free form.
func (d *Display) Update(pos int, done int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s := d.activeSlotLocked(pos); s != nil {
		s.done.Store(done)
	}
}

// Add adds n completed bytes to pos. Like Update it never redraws.
func (d *Display) Add(pos int, n int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s := d.activeSlotLocked(pos); s != nil {
		s.done.Add(n)
	}
}

// Deregister draws the final state of pos and returns the slot to the free
// pool. Capacity is left unchanged. Deregistering a free slot is a no-op.
func (d *Display) Deregister(pos int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.activeSlotLocked(pos)
	if s == nil {
		return
	}
	if err := d.engine.DeregisterSlot(s.info(pos)); err != nil {
		d.recordErrLocked(err)
	}
	s.active = false
	d.flushLocked()
}

// Resize adapts the number of assignable slots to a new worker-pool size.
// Capacity never drops below the highest active position, so active slots
// keep their position and data. Screen lines are reserved when growing and
// never given back.
func (d *Display) Resize(workers int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || workers < 1 {
		return
	}

	capacity := workers
	for pos := len(d.slots) - 1; pos >= capacity; pos-- {
		if d.slots[pos].active {
			capacity = pos + 1
			break
		}
	}

	if capacity < len(d.slots) {
		for pos := capacity; pos < len(d.slots); pos++ {
			d.slots[pos] = nil
		}
		d.slots = d.slots[:capacity]
	}
	for len(d.slots) < capacity {
		d.slots = append(d.slots, newSlot())
	}

	if need := capacity + 1; need > d.lines {
		d.out.WriteString(strings.Repeat("\n", need-d.lines))
		d.lines = need
		d.engine.SetLines(need)
		d.engine.Invalidate()
	}
	d.flushLocked()
}

// Capacity returns the number of assignable slots.
func (d *Display) Capacity() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots)
}

// Active returns the number of slots bound to a worker.
func (d *Display) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, s := range d.slots {
		if s.active {
			n++
		}
	}
	return n
}

// Slots returns a snapshot of every slot, active or not.
func (d *Display) Slots() []SlotInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]SlotInfo, len(d.slots))
	for pos, s := range d.slots {
		infos[pos] = s.info(pos)
	}
	return infos
}

func (d *Display) activeSlotLocked(pos int) *slot {
	if !d.running || pos < 0 || pos >= len(d.slots) {
		return nil
	}
	if s := d.slots[pos]; s.active {
		return s
	}
	return nil
}

// Worker is a registered slot handle owned by a single download goroutine.
// Its byte counter is updated without taking the gate. The zero value and a
// handle that could not be placed are valid no-ops.
type Worker struct {
	d    *Display
	pos  int
	slot *slot
}

// RegisterWorker registers a slot for a worker and returns its handle.
func (d *Display) RegisterWorker(hint int) *Worker {
	pos := d.Register(hint)
	if pos < 0 {
		return &Worker{pos: -1}
	}

	d.mu.Lock()
	s := d.activeSlotLocked(pos)
	d.mu.Unlock()

	return &Worker{d: d, pos: pos, slot: s}
}

// Pos returns the slot position, or -1 when the worker has no slot.
func (w *Worker) Pos() int {
	if w == nil || w.slot == nil {
		return -1
	}
	return w.pos
}

// Begin sets the label and expected size shown for this worker.
func (w *Worker) Begin(label string, size int64) {
	if w == nil || w.slot == nil {
		return
	}
	w.d.Begin(w.pos, label, size)
}

// Set records the number of bytes completed so far.
func (w *Worker) Set(done int64) {
	if w == nil || w.slot == nil {
		return
	}
	w.slot.done.Store(done)
}

// Write counts len(p) completed bytes so a Worker can sit behind an
// io.MultiWriter or io.TeeReader. It never fails.
func (w *Worker) Write(p []byte) (int, error) {
	if w != nil && w.slot != nil {
		w.slot.done.Add(int64(len(p)))
	}
	return len(p), nil
}

// Print writes a status text into this worker's line.
func (w *Worker) Print(text string) {
	if w == nil || w.slot == nil {
		return
	}
	w.d.Print(w.pos, text)
}

// Deregister releases the slot. Further calls are no-ops.
func (w *Worker) Deregister() {
	if w == nil || w.slot == nil {
		return
	}
	w.d.Deregister(w.pos)
	w.slot = nil
}
