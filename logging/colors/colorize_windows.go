//go:build windows

package colors

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// enabled indicates whether Colorize emits ANSI escape codes.
var enabled bool

// EnableColor queries the console attached to stdout and enables ANSI coloring if it supports, or can be switched
// into, virtual terminal processing.
func EnableColor() {
	handle := windows.Handle(os.Stdout.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		enabled = false
		return
	}
	if mode&windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING != 0 {
		enabled = true
		return
	}
	enabled = windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING) == nil
}

// DisableColor turns off ANSI coloring, causing every ColorFunc to return its input unchanged.
func DisableColor() {
	enabled = false
}

// Colorize returns s wrapped in the ANSI code c, or s unchanged if coloring is disabled or unsupported.
func Colorize(s any, c Color) string {
	if !enabled {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
