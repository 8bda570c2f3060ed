package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/flashkit/flashkit/internal/fastboot"
)

// deviceItem adapts a fastboot.DeviceSummary to bubbles/list's Item
// interface.
type deviceItem fastboot.DeviceSummary

func (d deviceItem) Title() string {
	return fmt.Sprintf("%04x:%04x", uint16(d.VendorID), uint16(d.ProductID))
}

func (d deviceItem) Description() string {
	return fmt.Sprintf("serial %s  bus %d  addr %d", d.Serial, d.Bus, d.Address)
}

func (d deviceItem) FilterValue() string { return d.Serial }

// DeviceList lists attached Fastboot devices with bubbles/list, adapted
// from the teacher's server/version picker screens.
type DeviceList struct {
	list list.Model
}

// NewDeviceList builds a DeviceList over the given device summaries.
func NewDeviceList(devices []fastboot.DeviceSummary) DeviceList {
	items := make([]list.Item, len(devices))
	for i, d := range devices {
		items[i] = deviceItem(d)
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Fastboot devices"
	return DeviceList{list: l}
}

func (m DeviceList) Init() tea.Cmd { return nil }

func (m DeviceList) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m DeviceList) View() string {
	return m.list.View()
}
