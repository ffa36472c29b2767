// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/serimon/serimon/pkg/capture"
	"github.com/serimon/serimon/pkg/defmt"
)

const (
	maxLogEntries = 500
	maxPlotPoints = 1024
)

// Messages
type tickMsg time.Time
type sessionDoneMsg struct {
	err error
}

// monitorModel is the live-monitor TUI state. Records are pulled from the
// store on a timer rather than pushed per record, so a fast device cannot
// flood the event loop.
type monitorModel struct {
	sess     *capture.Session
	store    *capture.Store
	cancel   context.CancelFunc
	connInfo string

	width  int
	height int

	cursor  uint64 // last sequence pulled from the store
	records []capture.Record
	keep    int // record view buffer cap
	stats   capture.Stats

	points     []timeserieslinechart.TimePoint
	chart      timeserieslinechart.Model
	chartReady bool

	input     textinput.Model
	sending   bool
	sendError string

	paused     bool
	quitting   bool
	done       bool
	sessionErr error
}

func newMonitorModel(sess *capture.Session, store *capture.Store, connInfo string, window int, cancel context.CancelFunc) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "command to send"
	ti.CharLimit = 256

	if window <= 0 {
		window = maxLogEntries
	}
	return monitorModel{
		sess:     sess,
		store:    store,
		cancel:   cancel,
		connInfo: connInfo,
		keep:     window,
		input:    ti,
		width:    80,
		height:   24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.sending {
			switch msg.String() {
			case "enter":
				cmd := strings.TrimSpace(m.input.Value())
				if cmd != "" {
					if err := m.sess.Send(cmd); err != nil {
						m.sendError = err.Error()
					} else {
						m.sendError = ""
					}
				}
				m.input.Reset()
				m.input.Blur()
				m.sending = false
				return m, nil
			case "esc":
				m.input.Reset()
				m.input.Blur()
				m.sending = false
				return m, nil
			default:
				var cmd tea.Cmd
				m.input, cmd = m.input.Update(msg)
				return m, cmd
			}
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
			if m.done {
				return m, tea.Quit
			}
			return m, nil
		case " ":
			m.paused = !m.paused
		case "c":
			m.store.Clear()
			m.records = nil
			m.points = nil
			m.rebuildChart()
		case "s":
			m.sending = true
			m.sendError = ""
			return m, m.input.Focus()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 12
		m.rebuildChart()

	case tickMsg:
		if !m.paused {
			m.pull()
		}
		m.stats = m.sess.Stats()
		m.stats.CalculateRates()
		return m, tickCmd()

	case sessionDoneMsg:
		m.done = true
		m.sessionErr = msg.err
		m.pull()
		if m.quitting {
			return m, tea.Quit
		}
	}

	return m, nil
}

// pull drains new records from the store into the display buffers.
func (m *monitorModel) pull() {
	fresh := m.store.Since(m.cursor)
	if len(fresh) == 0 {
		return
	}
	m.cursor = fresh[len(fresh)-1].Seq

	changed := false
	for _, r := range fresh {
		m.records = append(m.records, r)
		if v, ok := firstValue(r); ok {
			m.points = append(m.points, timeserieslinechart.TimePoint{Time: r.Time, Value: v})
			changed = true
		}
	}
	if len(m.records) > m.keep {
		m.records = m.records[len(m.records)-m.keep:]
	}
	if len(m.points) > maxPlotPoints {
		m.points = m.points[len(m.points)-maxPlotPoints:]
		changed = true
	}
	if changed {
		m.rebuildChart()
	}
}

// firstValue extracts the first numeric field from a record's message, the
// value that gets plotted. Text like "temp: 23.5, rpm: 1200" yields 23.5.
func firstValue(r capture.Record) (float64, bool) {
	var text string
	switch r.Kind {
	case capture.KindText:
		text = r.Text
	case capture.KindDecoded:
		text = r.Message.Text
	default:
		return 0, false
	}

	fields := strings.FieldsFunc(text, func(c rune) bool {
		switch c {
		case ',', ':', ';', '=', ' ', '\t':
			return true
		}
		return false
	})
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func (m *monitorModel) chartSize() (int, int) {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	h := m.height / 3
	if h < 6 {
		h = 6
	}
	return w, h
}

func (m *monitorModel) rebuildChart() {
	if len(m.points) == 0 {
		m.chartReady = false
		return
	}
	w, h := m.chartSize()
	m.chart = timeserieslinechart.New(w, h)
	for _, pt := range m.points {
		m.chart.Push(pt)
	}
	m.chart.DrawBraille()
	m.chartReady = true
}

func (m monitorModel) View() string {
	if m.quitting && m.done {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	sentStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SERIMON"))
	s.WriteString("  ")
	s.WriteString(headerStyle.Render(m.connInfo))
	s.WriteString("\n")

	state := m.sess.State().String()
	if m.done && m.sessionErr != nil {
		state = errorStyle.Render(fmt.Sprintf("faulted: %v", m.sessionErr))
	} else if m.paused {
		state += warnStyle.Render("  [display paused]")
	}
	s.WriteString(headerStyle.Render("State: "))
	s.WriteString(state)
	s.WriteString("\n")

	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Records:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalRecords)),
		labelStyle.Render("Errors:"), func() string {
			if m.stats.DecodeErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors))
			}
			return valueStyle.Render("0")
		}(),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f rec/s", m.stats.RecordRate)),
		labelStyle.Render("Bytes:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.BytesRead)),
	))

	// Plot
	if m.chartReady {
		s.WriteString(boxStyle.Render(m.chart.View()))
		s.WriteString("\n")
	}

	// Record log
	_, chartH := m.chartSize()
	logHeight := m.height - chartH - 10
	if !m.chartReady {
		logHeight = m.height - 10
	}
	if logHeight < 4 {
		logHeight = 4
	}

	logContent := strings.Builder{}
	start := len(m.records) - logHeight
	if start < 0 {
		start = 0
	}
	if len(m.records) == 0 {
		logContent.WriteString(headerStyle.Render("  (no records yet)"))
	} else {
		for i := start; i < len(m.records); i++ {
			r := m.records[i]
			line := formatRecord(r, false)
			switch {
			case r.Kind == capture.KindDecodeError:
				line = errorStyle.Render(line)
			case r.Kind == capture.KindSent:
				line = sentStyle.Render(line)
			case r.Kind == capture.KindDecoded && r.Message.Level >= defmt.LevelError:
				line = errorStyle.Render(line)
			case r.Kind == capture.KindDecoded && r.Message.Level == defmt.LevelWarn:
				line = warnStyle.Render(line)
			}
			logContent.WriteString(line)
			if i < len(m.records)-1 {
				logContent.WriteString("\n")
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n")

	// Send box
	if m.sending {
		s.WriteString(labelStyle.Render("Send: "))
		s.WriteString(m.input.View())
		s.WriteString("\n")
	} else if m.sendError != "" {
		s.WriteString(errorStyle.Render("send failed: " + m.sendError))
		s.WriteString("\n")
	}

	s.WriteString(headerStyle.Render("q quit | space pause | c clear | s send"))

	return s.String()
}
