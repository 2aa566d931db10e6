package source

// ReadyState summarizes whether a TileSource can be rendered offscreen
// right now (spec §4.5 isReadyToRenderOffscreen).
type ReadyState int

const (
	// Ready: every visible tile is loaded and has been signaled ready by
	// its downstream managers.
	Ready ReadyState = iota
	// NotReady: at least one visible tile is still loading or awaiting a
	// downstream ready signal.
	NotReady
	// Error: at least one visible tile permanently failed to load, or
	// carries an outstanding transient error.
	Error
)

func (s ReadyState) String() string {
	switch s {
	case Ready:
		return "READY"
	case NotReady:
		return "NOT_READY"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
