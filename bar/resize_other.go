//go:build !unix

package bar

import "os"

// notifyResize is a stub; window-size changes are not reported here.
func notifyResize() (<-chan os.Signal, func()) {
	return nil, func() {}
}
