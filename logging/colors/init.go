package colors

// init enables ANSI coloring for the current platform. Unix terminals support it by default while Windows consoles
// need to be queried.
func init() {
	EnableColor()
}
