package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/btscout/internal/bt"
)

// NicknameFunc returns the user-assigned label for a device, or "".
type NicknameFunc func(bt.Address) string

var (
	deviceColumns  = []string{"Address", "Name", "RSSI", "Core", "Class", "Services"}
	serviceColumns = []string{"Device", "Service", "UUID", "Channel"}
)

const rssiColumn = 2

// maxListed caps how many UUIDs are spelled out in one table cell.
const maxListed = 3

// RenderDeviceTable renders devices as a bordered table. A nickname, when
// known, replaces the advertised name and the advertised name follows it in
// parentheses.
func RenderDeviceTable(devices []bt.DeviceRecord, nickname NicknameFunc) string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, deviceRow(d, nickname))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(deviceColumns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			d := devices[row]
			switch {
			case col == rssiColumn && d.HasRSSI:
				return RSSIStyle(d.RSSI)
			case d.Cached || d.Name == "":
				return TableMutedCellStyle
			default:
				return TableCellStyle
			}
		})
	return t.Render()
}

func deviceRow(d bt.DeviceRecord, nickname NicknameFunc) []string {
	name := d.Name
	if nickname != nil {
		if nick := nickname(d.Address); nick != "" {
			name = nick
			if d.Name != "" && d.Name != nick {
				name += " (" + d.Name + ")"
			}
		}
	}
	if name == "" {
		name = "-"
	}
	if d.Cached {
		name += " [cached]"
	}

	rssi := "-"
	if d.HasRSSI {
		rssi = fmt.Sprintf("%d dBm", d.RSSI)
	}

	class := "-"
	if d.Class != 0 {
		class = fmt.Sprintf("0x%06X", uint32(d.Class))
	}

	return []string{d.Address.String(), name, rssi, d.CoreConfigurations.String(), class, listUUIDs(d.ServiceUUIDs)}
}

// RenderServiceTable renders service records, one row per record.
func RenderServiceTable(services []bt.ServiceRecord) string {
	rows := make([][]string, 0, len(services))
	for _, s := range services {
		uuid := "-"
		if u, ok := s.ServiceUUID(); ok {
			uuid = u.String()
		}
		channel := "-"
		if ch := s.ServerChannel(); ch > 0 {
			channel = fmt.Sprintf("%d", ch)
		}
		rows = append(rows, []string{s.Device.DisplayName(), s.DisplayName(), uuid, channel})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(serviceColumns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
	return t.Render()
}

func listUUIDs(uuids []bt.UUID) string {
	if len(uuids) == 0 {
		return "-"
	}
	names := make([]string, 0, maxListed)
	for i, u := range uuids {
		if i == maxListed {
			names = append(names, fmt.Sprintf("+%d more", len(uuids)-maxListed))
			break
		}
		if n := u.WellKnownName(); n != "" {
			names = append(names, n)
		} else {
			names = append(names, u.String())
		}
	}
	return strings.Join(names, ", ")
}
