// Package util holds small helpers shared by the commands.
package util

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// AskYN writes prompt to out and reads a yes/no answer from in. An empty
// answer or end of input selects the default.
func AskYN(in io.Reader, out io.Writer, prompt string, defaultYes bool) bool {
	if defaultYes {
		fmt.Fprintf(out, "%s [Y/n]: ", prompt)
	} else {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
	}

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}

	return response == "y" || response == "yes"
}
