package main

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"shutter/booth"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type armedMsg struct{ on bool }
type levelMsg struct{ level float64 }
type capturedMsg struct{ path string }
type liveMsg struct{}
type errMsg struct{ err error }
type deviceLineMsg struct{ text string }
type thresholdMsg struct{ value float64 }
type tickMsg time.Time

const (
	meterWidth     = 40
	thresholdStep  = 0.01
	flashFrames    = 8
	peakDecay      = 0.97
	tuiTickPeriod  = 60 * time.Millisecond
	tuiPhotoPrefix = "last: "
)

type tuiModel struct {
	ctrl *app

	armed      bool
	captured   bool
	mode       string
	level      float64
	peak       float64
	threshold  float64
	lastPhoto  string
	photos     int
	deviceLine string
	errText    string
	flash      int
	width      int
	height     int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	armedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	underStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	overStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	markerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	flashStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("16")).Background(lipgloss.Color("231"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func newTUIModel(a *app) tuiModel {
	m := tuiModel{ctrl: a, mode: booth.ModeCamera.String()}
	if a != nil {
		st := a.Status()
		m.armed = st.Armed
		m.threshold = st.Threshold
		m.mode = st.Booth.Mode
		m.captured = st.Booth.State == booth.StateCaptured.String()
		m.lastPhoto = st.Booth.LastPhoto
		m.photos = st.Booth.Photos
	}
	return m
}

func NewTUIProgram(a *app) *tea.Program {
	return tea.NewProgram(newTUIModel(a), tea.WithAltScreen())
}

// tuiSink forwards booth events into the Bubble Tea loop. Send blocks until
// the loop reads, so the model never calls the app from Update directly;
// it goes through commands instead.
type tuiSink struct {
	p *tea.Program
}

func (s tuiSink) Armed(on bool)          { s.p.Send(armedMsg{on}) }
func (s tuiSink) Level(level float64)    { s.p.Send(levelMsg{level}) }
func (s tuiSink) Captured(path string)   { s.p.Send(capturedMsg{path}) }
func (s tuiSink) Live()                  { s.p.Send(liveMsg{}) }
func (s tuiSink) Error(err error)        { s.p.Send(errMsg{err}) }
func (s tuiSink) DeviceLine(text string) { s.p.Send(deviceLineMsg{text}) }

func tuiTick() tea.Cmd {
	return tea.Tick(tuiTickPeriod, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.ResumeMsg:
		if m.ctrl == nil {
			return m, nil
		}
		a := m.ctrl
		return m, m.do(func(ctx context.Context) error { return a.Resume(ctx) })

	case tickMsg:
		if m.flash > 0 {
			m.flash--
		}
		return m, tuiTick()

	case armedMsg:
		m.armed = msg.on
		if msg.on {
			m.errText = ""
		}

	case levelMsg:
		m.level = msg.level
		m.peak = math.Max(msg.level, m.peak*peakDecay)

	case capturedMsg:
		m.captured = true
		m.lastPhoto = msg.path
		m.photos++
		m.flash = flashFrames
		m.errText = ""

	case liveMsg:
		m.captured = false
		if m.ctrl != nil {
			m.mode = m.ctrl.booth.Mode().String()
		}

	case errMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}

	case deviceLineMsg:
		m.deviceLine = msg.text

	case thresholdMsg:
		m.threshold = msg.value
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	if m.ctrl == nil {
		return m, nil
	}
	a := m.ctrl

	switch msg.String() {
	case "t":
		armed := m.armed
		return m, m.do(func(ctx context.Context) error {
			a.SetArmed(ctx, !armed)
			return nil
		})
	case " ", "space", "s":
		return m, m.do(func(ctx context.Context) error {
			a.TakePhoto(ctx, "tui")
			return nil
		})
	case "r":
		return m, m.do(func(context.Context) error { return a.Retake() })
	case "c":
		return m, m.do(func(context.Context) error { return a.SwitchCamera() })
	case "m":
		next := booth.ModeUpload
		if a.booth.Mode() == booth.ModeUpload {
			next = booth.ModeCamera
		}
		return m, m.do(func(context.Context) error {
			a.booth.SetMode(next)
			return nil
		})
	case "+", "=":
		return m, m.retune(thresholdStep)
	case "-", "_":
		return m, m.retune(-thresholdStep)
	case "ctrl+z":
		pause := m.do(func(context.Context) error {
			a.Pause()
			return nil
		})
		return m, tea.Sequence(pause, tea.Suspend)
	}
	return m, nil
}

// do runs fn off the event loop; the app's sinks report the outcome.
func (m tuiModel) do(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m tuiModel) retune(delta float64) tea.Cmd {
	a := m.ctrl
	next := math.Round((m.threshold+delta)*100) / 100
	next = math.Min(math.Max(next, 0), 1)
	return func() tea.Msg {
		if err := a.SetThreshold(next); err != nil {
			return errMsg{err}
		}
		return thresholdMsg{next}
	}
}

// meterCells draws the level bar as runes: '█' up to the level, '│' at the
// threshold and '░' elsewhere.
func meterCells(level, threshold float64, width int) []rune {
	cells := make([]rune, width)
	filled := int(math.Round(math.Min(math.Max(level, 0), 1) * float64(width)))
	marker := int(math.Round(math.Min(math.Max(threshold, 0), 1) * float64(width)))
	marker = min(marker, width-1)
	for i := range cells {
		switch {
		case i == marker:
			cells[i] = '│'
		case i < filled:
			cells[i] = '█'
		default:
			cells[i] = '░'
		}
	}
	return cells
}

func renderMeter(level, threshold float64, width int) string {
	fill := underStyle
	if level > threshold {
		fill = overStyle
	}
	var b strings.Builder
	for _, c := range meterCells(level, threshold, width) {
		switch c {
		case '│':
			b.WriteString(markerStyle.Render(string(c)))
		case '█':
			b.WriteString(fill.Render(string(c)))
		default:
			b.WriteString(emptyStyle.Render(string(c)))
		}
	}
	return b.String()
}

func (m tuiModel) View() string {
	var lines []string

	title := titleStyle.Render("SHUTTER")
	if m.flash > 0 {
		title = flashStyle.Render(" CAPTURED ")
	}
	trigger := offStyle.Render("○ OFF")
	if m.armed {
		trigger = armedStyle.Render("● ARMED")
	}
	lines = append(lines, title+"  "+trigger, "")

	lines = append(lines,
		"level "+renderMeter(m.level, m.threshold, meterWidth)+
			fmt.Sprintf(" %.2f", m.level),
		dimStyle.Render(fmt.Sprintf("      threshold %.2f  peak %.2f", m.threshold, m.peak)),
		"",
	)

	state := booth.StateLive.String()
	if m.captured {
		state = booth.StateCaptured.String()
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf("state %s  mode %s  photos %d", state, m.mode, m.photos)))
	if m.lastPhoto != "" {
		lines = append(lines, dimStyle.Render(tuiPhotoPrefix+filepath.Base(m.lastPhoto)))
	}
	if m.deviceLine != "" {
		lines = append(lines, dimStyle.Render(m.deviceLine))
	}
	if m.errText != "" {
		lines = append(lines, warnStyle.Render("⚠ "+m.errText))
	}

	lines = append(lines, "",
		helpKeyStyle.Render("t")+helpStyle.Render(" trigger  ")+
			helpKeyStyle.Render("space")+helpStyle.Render(" photo  ")+
			helpKeyStyle.Render("r")+helpStyle.Render(" retake  ")+
			helpKeyStyle.Render("c")+helpStyle.Render(" camera  ")+
			helpKeyStyle.Render("m")+helpStyle.Render(" mode  ")+
			helpKeyStyle.Render("+/-")+helpStyle.Render(" threshold  ")+
			helpKeyStyle.Render("q")+helpStyle.Render(" quit"),
		helpStyle.Render("shutter "+version),
	)

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}
