// Package ui renders btscout command output with Lipgloss.
//
// Unlike the interactive watch view in package tui, these components follow a
// "print and move on" pattern: a header when a command starts, a line per
// session event while it runs, and a table plus result box when it ends.
//
// # Components
//
//   - Header: command banner with the run parameters
//   - Result: success, warning and failure boxes; failures carry
//     troubleshooting tips chosen from the error's bt.Kind
//   - RenderDeviceTable / RenderServiceTable: lipgloss tables of records
//   - Printer: writes all of the above to an io.Writer
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout).WithNicknames(settings.Nickname)
//	p.PrintHeader("Device scan", "btscout scan", ui.Param{Key: "Backend", Value: "bluez"})
//	for ev := range engine.Events() {
//	    p.PrintEvent(ev)
//	}
//	p.PrintDevices(devices)
package ui
