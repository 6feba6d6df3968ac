package bar

import "bytes"

// Write prints a log message above the bar region without corrupting it and
// implements io.Writer so the Display can be installed as a logger sink.
//
// With the gate held it saves the cursor, scrolls the screen up by the
// number of message lines, moves to the top of the bar region, clears to the
// end of the screen, writes the message, restores the cursor and repaints
// every slot at once so the bar never stays blank until the next tick.
//
// A message without a trailing newline gets one. When the display is not
// running the message is dropped.
func (d *Display) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return len(p), nil
	}

	msg := p
	if msg[len(msg)-1] != '\n' {
		msg = append(msg[:len(msg):len(msg)], '\n')
	}
	n := bytes.Count(msg, []byte{'\n'})

	d.out.WriteString(carveSequence(d.lines, n))
	d.out.Write(msg)
	d.out.WriteString(restoreCursor)
	d.flushLocked()

	d.engine.Invalidate()
	d.repaintLocked()
	d.flushLocked()

	return len(p), nil
}
