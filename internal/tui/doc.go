// Package tui implements the interactive watch screen.
//
// WatchModel is a Bubble Tea model over a running discovery engine: it starts
// device discovery, folds each session event into a bubbles/list of devices
// and lets the user stop or restart the scan. Restart issues a stop followed
// by a start; the device session queues the start behind the stop, so the
// list is rebuilt from the new run only.
//
// Key bindings:
//
//	↑/k ↓/j  move through the list
//	/        filter by address, name or nickname
//	r        restart the scan
//	s        stop the scan
//	q        quit
package tui
