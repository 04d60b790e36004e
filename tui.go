package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mockvox/interview"
	"mockvox/session"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	speakerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	hiredStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	notHiredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type tuiModel struct {
	ctrl *session.Controller

	state         session.State
	jobs          []interview.JobPosting
	selected      int
	turns         []interview.Turn
	report        *interview.Report
	notice        string
	errText       string
	audioLevel    float64
	silence       bool
	copied        bool
	width, height int

	searching   bool
	searchInput string
}

func newTUIModel(ctrl *session.Controller) tuiModel {
	return tuiModel{ctrl: ctrl, selected: -1}
}

func NewTUIProgram(ctrl *session.Controller) *tea.Program {
	return tea.NewProgram(newTUIModel(ctrl), tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case JobListMsg:
		m.jobs = msg.Jobs
		m.selected = -1
		m.errText = ""
		if len(msg.Jobs) == 0 {
			m.notice = "no postings matched"
		} else {
			m.notice = fmt.Sprintf("%d postings, press 1-%d to select", len(msg.Jobs), len(msg.Jobs))
		}

	case TurnMsg:
		m.turns = append(m.turns, msg.Turn)

	case ReportMsg:
		m.report = msg.Report
		m.copied = false

	case ControlsMsg:
		m.state = msg.State
		if msg.State == session.StateIdle {
			m.silence = false
			m.audioLevel = 0
		}

	case NoticeMsg:
		m.notice = msg.Text
		m.errText = ""

	case ErrorMsg:
		m.errText = msg.Err.Error()

	case AudioLevelMsg:
		m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4

	case SilenceMsg:
		m.silence = msg.Active
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEnter:
			m.searching = false
			if m.searchInput != "" {
				m.ctrl.Search(m.searchInput)
			}
		case tea.KeyEsc:
			m.searching = false
		case tea.KeyBackspace:
			if len(m.searchInput) > 0 {
				m.searchInput = m.searchInput[:len(m.searchInput)-1]
			}
		case tea.KeyRunes:
			m.searchInput += string(msg.Runes)
		case tea.KeySpace:
			m.searchInput += " "
		}
		return m, nil
	}

	key := msg.String()
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "/":
		if m.state == session.StateIdle {
			m.searching = true
			m.searchInput = ""
		}

	case "s":
		if m.state == session.StateIdle {
			m.ctrl.StartInterview()
		}

	case " ", "r":
		if m.state == session.StateAwaitingUser || m.state == session.StateRecording {
			m.ctrl.ToggleRecording()
		}

	case "e":
		if m.state.Active() {
			m.ctrl.EndInterview()
		}

	case "n":
		if m.state.Terminal() {
			m.turns = nil
			m.report = nil
			m.jobs = nil
			m.selected = -1
			m.notice = ""
			m.errText = ""
			m.ctrl.Restart()
		}

	case "y":
		if m.report != nil {
			if err := clipboard.WriteAll(reportText(m.report)); err == nil {
				m.copied = true
			}
		}

	default:
		if m.state == session.StateIdle && len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			idx := int(key[0] - '1')
			if idx < len(m.jobs) {
				m.selected = idx
				m.ctrl.SelectJob(idx)
			}
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerLine() + "\n\n")

	switch {
	case m.report != nil:
		b.WriteString(m.reportView())
	case m.state == session.StateIdle && len(m.jobs) > 0:
		b.WriteString(m.jobListView())
	default:
		b.WriteString(m.chatView())
	}

	b.WriteString("\n" + m.statusLine() + "\n")
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	if m.errText != "" {
		b.WriteString(errorStyle.Render("error: "+m.errText) + "\n")
	}
	b.WriteString(m.helpLine() + "\n")
	return b.String()
}

func (m tuiModel) headerLine() string {
	title := "mockvox " + version
	if id := m.ctrl.SessionID(); id != "" {
		title += "  session " + id
	}
	return headerStyle.Render(title)
}

func (m tuiModel) jobListView() string {
	var b strings.Builder
	b.WriteString(speakerStyle.Render("Job postings") + "\n\n")
	for i, job := range m.jobs {
		marker := "  "
		if i == m.selected {
			marker = "▶ "
		}
		line := fmt.Sprintf("%s%d. %s - %s", marker, i+1, job.Title, job.Company)
		if i == m.selected {
			b.WriteString(userStyle.Render(line) + "\n")
		} else {
			b.WriteString(line + "\n")
		}
		if job.Description != "" {
			for _, l := range wrapText(job.Description, m.width-6) {
				b.WriteString(noticeStyle.Render("     "+l) + "\n")
			}
		}
	}
	return b.String()
}

func (m tuiModel) chatView() string {
	var b strings.Builder
	if len(m.turns) == 0 {
		b.WriteString(noticeStyle.Render("No conversation yet.") + "\n")
		return b.String()
	}

	// Show as many of the latest turns as fit.
	maxLines := m.height - 8
	if maxLines < 4 {
		maxLines = 4
	}
	var lines []string
	for _, turn := range m.turns {
		style := systemStyle
		label := "interviewer"
		if turn.Speaker == interview.SpeakerUser {
			style = userStyle
			label = "you"
		}
		lines = append(lines, speakerStyle.Render(label+":"))
		for _, l := range wrapText(turn.Text, m.width-4) {
			lines = append(lines, "  "+style.Render(l))
		}
		if turn.AudioURL != "" {
			// Playback is left to the user; show where the audio lives.
			lines = append(lines, "  "+noticeStyle.Render("♪ "+turn.AudioURL))
		}
		lines = append(lines, "")
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func (m tuiModel) reportView() string {
	rep := m.report
	var b strings.Builder
	b.WriteString(speakerStyle.Render("Interview report") + "\n\n")
	b.WriteString(fmt.Sprintf("  overall score: %.1f / 5\n", rep.OverallScore))
	verdict := notHiredStyle.Render("not hired")
	if rep.Hired {
		verdict = hiredStyle.Render("hired")
	}
	b.WriteString("  recommendation: " + verdict + "\n\n")

	dims := make([]string, 0, len(rep.DimensionScores))
	for name := range rep.DimensionScores {
		dims = append(dims, name)
	}
	sort.Strings(dims)
	for _, name := range dims {
		score := rep.DimensionScores[name]
		bar := strings.Repeat("█", int(score*4+0.5))
		b.WriteString(fmt.Sprintf("  %-16s %.1f %s\n", name, score, systemStyle.Render(bar)))
	}
	if m.copied {
		b.WriteString("\n" + userStyle.Render("  [✓ copied]") + "\n")
	}
	return b.String()
}

func (m tuiModel) statusLine() string {
	if m.searching {
		return "search: " + m.searchInput + "▌"
	}
	switch m.state {
	case session.StateRecording:
		line := recStyle.Render("● REC ") + levelBar(m.audioLevel, 20)
		if m.silence {
			line += "  " + warnStyle.Render("⚠ no voice detected")
		}
		return line
	case session.StateSubmitting:
		return warnStyle.Render("… submitting answer")
	case session.StateStarting:
		return noticeStyle.Render("starting interview...")
	case session.StateAwaitingUser:
		return standbyStyle.Render("○ your turn  " + m.progress())
	case session.StateEnding:
		return noticeStyle.Render("fetching report...")
	case session.StateEndedAborted:
		return standbyStyle.Render("interview ended early")
	default:
		return standbyStyle.Render("○ " + m.state.String())
	}
}

// progress counts interviewer prompts locally; the total is shown only
// when the backend announced one.
func (m tuiModel) progress() string {
	n := 0
	for _, turn := range m.turns {
		if turn.Speaker == interview.SpeakerSystem {
			n++
		}
	}
	if n == 0 {
		return ""
	}
	if total := m.ctrl.TotalQuestions(); total > 0 {
		return fmt.Sprintf("question %d of %d", n, total)
	}
	return fmt.Sprintf("question %d", n)
}

func (m tuiModel) helpLine() string {
	pair := func(k, desc string) string {
		return helpKeyStyle.Render(k) + helpStyle.Render(" "+desc)
	}
	var parts []string
	switch {
	case m.searching:
		parts = append(parts, pair("enter", "search"), pair("esc", "cancel"))
	case m.state == session.StateIdle:
		parts = append(parts, pair("/", "search jobs"))
		if len(m.jobs) > 0 {
			parts = append(parts, pair("1-9", "select"))
		}
		if m.selected >= 0 {
			parts = append(parts, pair("s", "start interview"))
		}
	case m.state == session.StateAwaitingUser:
		parts = append(parts, pair("space", "record answer"), pair("e", "end interview"))
	case m.state == session.StateRecording:
		parts = append(parts, pair("space", "stop & submit"), pair("e", "end interview"))
	case m.state.Terminal():
		if m.report != nil {
			parts = append(parts, pair("y", "copy report"))
		}
		parts = append(parts, pair("n", "new interview"))
	}
	parts = append(parts, pair("q", "quit"))
	return strings.Join(parts, helpStyle.Render("  ·  "))
}

func levelBar(level float64, width int) string {
	filled := int(level * float64(width) * 4)
	if filled > width {
		filled = width
	}
	return userStyle.Render(strings.Repeat("▮", filled)) +
		standbyStyle.Render(strings.Repeat("▯", width-filled))
}

func reportText(rep *interview.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "overall: %.1f/5, hired: %t\n", rep.OverallScore, rep.Hired)
	dims := make([]string, 0, len(rep.DimensionScores))
	for name := range rep.DimensionScores {
		dims = append(dims, name)
	}
	sort.Strings(dims)
	for _, name := range dims {
		fmt.Fprintf(&b, "%s: %.1f\n", name, rep.DimensionScores[name])
	}
	return b.String()
}

func wrapText(text string, width int) []string {
	if width < 10 {
		width = 10
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
		} else {
			line += " " + w
		}
	}
	return append(lines, line)
}
