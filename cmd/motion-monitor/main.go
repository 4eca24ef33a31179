// Command motion-monitor is a small terminal UI that polls a running
// motion-host's status API and renders the sent and padding queue depths
// and the retransmit generation alongside host CPU/mem usage. Line numbers
// are not shown.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"
)

var hostAddr = flag.String("host", "http://localhost:8080", "motion-host base address")

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78")).Italic(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type statusResponse struct {
	SessionID   string      `json:"session_id"`
	Uptime      string      `json:"uptime"`
	SentLen     int         `json:"sent_len"`
	PaddingLen  int         `json:"padding_len"`
	Generation  uint32      `json:"generation"`
	MotionState interface{} `json:"motion_state"`
	StallCount  uint64      `json:"stall_count"`
	Tracing     bool        `json:"tracing"`
}

type statusMsg struct {
	resp statusResponse
	err  error
}

type resourceMsg struct {
	line string
}

type model struct {
	addr string

	status    statusResponse
	statusErr error

	resourceLine string
	showCopied   bool
}

func initialModel() model {
	return model{addr: *hostAddr}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(pollStatus(m.addr), pollResources())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			diag := m.diagnosticsText()
			m.showCopied = clipboard.WriteAll(diag) == nil
			return m, nil
		}
	case statusMsg:
		m.status = msg.resp
		m.statusErr = msg.err
		return m, tea.Tick(time.Second, func(time.Time) tea.Msg { return pollStatusOnce(m.addr) })
	case resourceMsg:
		m.resourceLine = msg.line
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return pollResourcesOnce() })
	}
	return m, nil
}

func (m model) View() string {
	var b []byte
	b = append(b, titleStyle.Render("motion-monitor")...)
	b = append(b, '\n')

	if m.statusErr != nil {
		b = append(b, errStyle.Render(fmt.Sprintf("status error: %v", m.statusErr))...)
		b = append(b, '\n')
	} else {
		b = append(b, row("session", m.status.SessionID)...)
		b = append(b, row("uptime", m.status.Uptime)...)
		b = append(b, row("sent queue", fmt.Sprintf("%d", m.status.SentLen))...)
		b = append(b, row("padding queue", fmt.Sprintf("%d", m.status.PaddingLen))...)
		b = append(b, row("retransmit generation", fmt.Sprintf("%d", m.status.Generation))...)
		if m.status.Tracing {
			b = append(b, row("backpressure stalls", fmt.Sprintf("%d", m.status.StallCount))...)
		}
	}

	if m.resourceLine != "" {
		b = append(b, labelStyle.Render(m.resourceLine)...)
		b = append(b, '\n')
	}

	if m.showCopied {
		b = append(b, noteStyle.Render("copied session diagnostics to clipboard")...)
		b = append(b, '\n')
	}

	b = append(b, labelStyle.Render("q: quit   c: copy diagnostics")...)
	return string(b)
}

func row(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func (m model) diagnosticsText() string {
	base := fmt.Sprintf("session=%s uptime=%s sent=%d padding=%d generation=%d",
		m.status.SessionID, m.status.Uptime, m.status.SentLen, m.status.PaddingLen, m.status.Generation)
	if m.status.Tracing {
		base += fmt.Sprintf(" stalls=%d", m.status.StallCount)
	}
	return base
}

func pollStatus(addr string) tea.Cmd {
	return func() tea.Msg { return pollStatusOnce(addr) }
}

func pollStatusOnce(addr string) tea.Msg {
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(addr + "/status")
	if err != nil {
		return statusMsg{err: err}
	}
	defer resp.Body.Close()

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return statusMsg{err: err}
	}
	return statusMsg{resp: out}
}

func pollResources() tea.Cmd {
	return func() tea.Msg { return pollResourcesOnce() }
}

func pollResourcesOnce() tea.Msg {
	cpuPercent, _ := psutil.Percent(0, false)
	memInfo, _ := psmem.VirtualMemory()

	cpu := 0.0
	if len(cpuPercent) > 0 {
		cpu = cpuPercent[0]
	}
	mem := 0.0
	if memInfo != nil {
		mem = memInfo.UsedPercent
	}
	return resourceMsg{line: fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%%", cpu, mem)}
}

func main() {
	flag.Parse()

	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Println("motion-monitor:", err)
	}
}
