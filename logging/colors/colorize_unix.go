//go:build !windows

package colors

import "fmt"

// enabled indicates whether Colorize emits ANSI escape codes.
var enabled = true

// EnableColor turns on ANSI coloring. Unix terminals support ANSI escape codes, so this always succeeds.
func EnableColor() {
	enabled = true
}

// DisableColor turns off ANSI coloring, causing every ColorFunc to return its input unchanged.
func DisableColor() {
	enabled = false
}

// Colorize returns s wrapped in the ANSI code c, or s unchanged if coloring is disabled.
func Colorize(s any, c Color) string {
	if !enabled {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
