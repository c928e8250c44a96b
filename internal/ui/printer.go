package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
)

// Printer writes styled command output. Commands use it for everything that
// is meant for the user; diagnostics go through the logging package.
type Printer struct {
	out      io.Writer
	width    int
	nickname NicknameFunc
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// WithNicknames sets the lookup used to label known devices.
func (p *Printer) WithNicknames(fn NicknameFunc) *Printer {
	p.nickname = fn
	return p
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header followed by a blank line.
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box.
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box.
func (p *Printer) PrintWarning(title string, details ...Param) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintFailure prints a failure box with the troubleshooting tips for err.
func (p *Printer) PrintFailure(title string, err error) {
	p.Println(NewFailureResult(title, err).SetWidth(p.width).Render())
}

// PrintDevices prints a device table, or a muted note when there is nothing
// to show.
func (p *Printer) PrintDevices(devices []bt.DeviceRecord) {
	if len(devices) == 0 {
		p.Println(EventLineStyle.Render("  No devices found"))
		return
	}
	p.Println(RenderDeviceTable(devices, p.nickname))
}

// PrintServices prints a service table.
func (p *Printer) PrintServices(services []bt.ServiceRecord) {
	if len(services) == 0 {
		p.Println(EventLineStyle.Render("  No services found"))
		return
	}
	p.Println(RenderServiceTable(services))
}

// PrintEvent prints one line describing a session event as it happens.
func (p *Printer) PrintEvent(ev discovery.Event) {
	if line := p.EventLine(ev); line != "" {
		p.Println(line)
	}
}

// EventLine formats ev for streaming output. Terminal events return "" since
// commands summarize them with a result box.
func (p *Printer) EventLine(ev discovery.Event) string {
	switch ev.Type {
	case discovery.DeviceDiscovered:
		return EventLineStyle.Render("  "+NewMarker+" ") + p.deviceLabel(ev.Device)
	case discovery.DeviceUpdated:
		return EventLineStyle.Render("  "+UpdateMarker+" ") + p.deviceLabel(ev.Device) +
			EventLineStyle.Render(" ["+ev.Fields.String()+"]")
	case discovery.ServiceDiscovered:
		return EventLineStyle.Render("  "+NewMarker+" ") + ev.Service.Device.DisplayName() +
			EventLineStyle.Render(" → ") + ev.Service.DisplayName()
	case discovery.ErrorOccurred:
		return ErrorMessageStyle.Render("  " + FailureMarker + " " + ev.Err.Error())
	default:
		return ""
	}
}

func (p *Printer) deviceLabel(d bt.DeviceRecord) string {
	label := d.Address.String()
	name := d.Name
	if p.nickname != nil {
		if nick := p.nickname(d.Address); nick != "" {
			name = nick
		}
	}
	if name != "" {
		label += "  " + name
	}
	if d.HasRSSI {
		label += "  " + RSSIStyle(d.RSSI).UnsetPadding().Render(fmt.Sprintf("%d dBm", d.RSSI))
	}
	return label
}

// PrintJSON writes v as indented JSON.
func (p *Printer) PrintJSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
