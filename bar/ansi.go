package bar

import "fmt"

// VT100 sequences used around interleaved messages.
const (
	saveCursor    = "\0337"
	restoreCursor = "\0338"
	column1       = "\033[1G"
	clearToEnd    = "\033[0J"
)

// carveSequence saves the cursor, scrolls the screen up n lines and moves to
// column 1 of the first line above the bar region, clearing everything below.
func carveSequence(lines, n int) string {
	return fmt.Sprintf("%s\033[%dS\033[%dA%s%s", saveCursor, n, lines+n, column1, clearToEnd)
}
