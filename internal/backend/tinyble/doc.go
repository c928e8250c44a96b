// Package tinyble implements a low energy only bt.Backend on top of
// tinygo.org/x/bluetooth, which runs on Linux, macOS and Windows.
//
// Only advertisement scanning is available: classic discovery and live
// service queries report KindUnsupportedMethod.
package tinyble
