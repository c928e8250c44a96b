package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/ui"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List and label remembered devices",
	Long: `Show the devices stored in the config file.

Devices are added by 'btscout devices name' or by 'btscout scan --remember-all'.
Nicknames replace advertised names in every table and in the watch view.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

var deviceNameCmd = &cobra.Command{
	Use:   "name ADDRESS NICKNAME",
	Short: "Give a device a nickname",
	Example: `  btscout devices name F4:4E:FD:12:34:56 "Desk headset"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := bt.ParseAddress(args[0])
		if err != nil {
			return err
		}
		nickname := strings.TrimSpace(args[1])
		if nickname == "" {
			return fmt.Errorf("nickname must not be empty")
		}
		settings.SetDeviceNickname(addr, nickname)
		if err := saveSettings(); err != nil {
			return err
		}
		newPrinter().PrintSuccess("Nickname saved",
			ui.Param{Key: "Address", Value: addr.String()},
			ui.Param{Key: "Nickname", Value: nickname},
		)
		return nil
	},
}

var deviceForgetCmd = &cobra.Command{
	Use:   "forget ADDRESS",
	Short: "Remove a device from the config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := bt.ParseAddress(args[0])
		if err != nil {
			return err
		}
		if !settings.ForgetDevice(addr) {
			return fmt.Errorf("device %s is not in the config", addr)
		}
		return saveSettings()
	},
}

func init() {
	devicesCmd.AddCommand(deviceNameCmd)
	devicesCmd.AddCommand(deviceForgetCmd)
	rootCmd.AddCommand(devicesCmd)
}

// knownDevice is the JSON form of one config entry.
type knownDevice struct {
	Address  string    `json:"address"`
	Nickname string    `json:"nickname,omitempty"`
	LastSeen time.Time `json:"last_seen"`
	LastRSSI int16     `json:"last_rssi,omitempty"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	known := make([]knownDevice, 0, len(settings.Devices))
	for addr, d := range settings.Devices {
		known = append(known, knownDevice{Address: addr, Nickname: d.Nickname, LastSeen: d.LastSeen, LastRSSI: d.LastRSSI})
	}
	sort.Slice(known, func(i, j int) bool { return known[i].Address < known[j].Address })

	p := newPrinter()
	if jsonOutput {
		return p.PrintJSON(known)
	}
	if len(known) == 0 {
		p.Println(ui.EventLineStyle.Render("  No remembered devices"))
		return nil
	}

	rows := make([][]string, 0, len(known))
	for _, k := range known {
		seen, rssi := "never", "-"
		if !k.LastSeen.IsZero() {
			seen = k.LastSeen.Local().Format("2006-01-02 15:04")
		}
		if k.LastRSSI != 0 {
			rssi = fmt.Sprintf("%d dBm", k.LastRSSI)
		}
		rows = append(rows, []string{k.Address, k.Nickname, seen, rssi})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.PrimaryColor)).
		Headers("Address", "Nickname", "Last seen", "Last RSSI").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.TableHeaderStyle
			}
			return ui.TableCellStyle
		})
	p.Println(t.Render())
	return nil
}
