// Package tui is the terminal presentation layer for the interview coach.
//
// [Model] is a bubbletea model that renders the coach's session snapshots
// and turns key presses into coach actions. Coach actions block on network
// and device calls, so each runs inside a tea.Cmd; the coach's change, busy,
// notice and recording-tick callbacks reach the model as messages through
// [Bridge].
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/carecoach/internal/interview"
	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

// noticeTTL is how long a transient notice stays on screen.
const noticeTTL = 6 * time.Second

// Coach is the subset of *interview.Coach the UI drives.
type Coach interface {
	Session() interview.Session
	Busy() bool
	Recording() bool
	MicPermission() capture.Permission
	CameraActive() bool

	SelectRegion(r gateway.Region) error
	SelectFacility(f gateway.Facility) error
	Start(ctx context.Context) error
	SubmitText(ctx context.Context, text string) error
	ToggleRecording(ctx context.Context) error
	Advance(ctx context.Context) error
	ReplayLast(ctx context.Context) bool
	ToggleCamera(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
}

// Model is the root bubbletea model.
type Model struct {
	ctx   context.Context
	coach Coach

	session interview.Session
	busy    bool

	// Setup selection.
	regionIdx   int
	facilityIdx int

	// Recording.
	recording bool
	elapsed   time.Duration

	cameraOn bool

	// Notices.
	notice    string
	noticeErr bool
	noticeSeq int

	input    textinput.Model
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	width  int
	height int
}

// New returns a model bound to coach. Actions run with ctx.
func New(ctx context.Context, coach Coach) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your answer, or press Ctrl+R to answer by voice"
	ti.CharLimit = 2000
	ti.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	pr := progress.New(progress.WithSolidFill(string(ColorTeal)), progress.WithoutPercentage(), progress.WithWidth(30))

	m := Model{
		ctx:      ctx,
		coach:    coach,
		session:  coach.Session(),
		busy:     coach.Busy(),
		input:    ti,
		spinner:  sp,
		progress: pr,
		viewport: viewport.New(80, 20),
	}
	m.regionIdx = indexOf(gateway.Regions(), m.session.Region)
	m.facilityIdx = indexOf(gateway.Facilities(), m.session.Facility)
	m.syncFocus()
	return m
}

// Init starts the spinner and the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(20, msg.Width-4)
		m.progress.Width = max(10, min(40, msg.Width/3))
		m.viewport.Width = msg.Width
		m.viewport.Height = m.transcriptHeight()
		m.refreshTranscript()
		return m, nil

	case SessionMsg:
		m.setSession(msg.Session)
		return m, nil

	case BusyMsg:
		m.busy = msg.Busy
		return m, nil

	case NoticeMsg:
		return m, m.showNotice(msg.Notice.Text, msg.Notice.Kind != interview.NoticeConfigReload)

	case RecordingTickMsg:
		m.elapsed = msg.Elapsed
		return m, nil

	case actionDoneMsg:
		m.setSession(m.coach.Session())
		m.busy = m.coach.Busy()
		m.recording = m.coach.Recording()
		if !m.recording {
			m.elapsed = 0
		}
		if msg.err != nil && !isQuietError(msg.err) {
			return m, m.showNotice(actionFailure(msg.action, msg.err), true)
		}
		return m, nil

	case cameraMsg:
		m.cameraOn = msg.on
		return m, nil

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeErr = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}
	if m.session.Step == interview.StepSetup {
		return m.handleSetupKey(key)
	}

	switch key {
	case KeyEsc:
		return m, tea.Quit

	case KeyEnter:
		switch m.session.Step {
		case interview.StepInterviewing:
			text := m.input.Value()
			if text == "" || m.busy {
				return m, nil
			}
			if m.recording {
				return m, m.showNotice("Stop the recording with Ctrl+R first, or keep answering by voice.", true)
			}
			m.input.Reset()
			return m, m.run("submit", func(ctx context.Context) error {
				return m.coach.SubmitText(ctx, text)
			})
		case interview.StepAwaitingNext:
			return m, m.run("advance", m.coach.Advance)
		case interview.StepFinished:
			return m, m.run("reset", m.coach.Reset)
		}
		return m, nil

	case KeyRecord:
		if m.session.Step != interview.StepInterviewing {
			return m, nil
		}
		m.recording = !m.recording
		return m, m.run("record", m.coach.ToggleRecording)

	case KeyNext:
		if m.recording {
			return m, nil
		}
		return m, m.run("advance", m.coach.Advance)

	case KeyReplay:
		return m, func() tea.Msg {
			m.coach.ReplayLast(m.ctx)
			return nil
		}

	case KeyCamera:
		return m, func() tea.Msg {
			on, err := m.coach.ToggleCamera(m.ctx)
			return cameraMsg{on: on, err: err}
		}

	case KeyReset:
		m.input.Reset()
		return m, m.run("reset", m.coach.Reset)

	case KeyPgUp:
		m.viewport.HalfPageUp()
		return m, nil

	case KeyPgDown:
		m.viewport.HalfPageDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSetupKey(key string) (tea.Model, tea.Cmd) {
	regions, facilities := gateway.Regions(), gateway.Facilities()
	switch key {
	case KeyQuit, KeyEsc:
		return m, tea.Quit

	case KeyUp, KeyK:
		m.regionIdx = (m.regionIdx + len(regions) - 1) % len(regions)
		return m, m.selectRegion(regions[m.regionIdx])

	case KeyDown, KeyJ:
		m.regionIdx = (m.regionIdx + 1) % len(regions)
		return m, m.selectRegion(regions[m.regionIdx])

	case KeyLeft, KeyH:
		m.facilityIdx = (m.facilityIdx + len(facilities) - 1) % len(facilities)
		return m, m.selectFacility(facilities[m.facilityIdx])

	case KeyRight, KeyL:
		m.facilityIdx = (m.facilityIdx + 1) % len(facilities)
		return m, m.selectFacility(facilities[m.facilityIdx])

	case KeyEnter:
		if m.busy {
			return m, nil
		}
		return m, m.run("start", m.coach.Start)
	}
	return m, nil
}

func (m Model) selectRegion(r gateway.Region) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: "select", err: m.coach.SelectRegion(r)}
	}
}

func (m Model) selectFacility(f gateway.Facility) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: "select", err: m.coach.SelectFacility(f)}
	}
}

// run executes a blocking coach action off the UI goroutine.
func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m *Model) setSession(s interview.Session) {
	m.session = s
	if s.Step == interview.StepSetup {
		m.regionIdx = indexOf(gateway.Regions(), s.Region)
		m.facilityIdx = indexOf(gateway.Facilities(), s.Facility)
	}
	m.syncFocus()
	m.refreshTranscript()
}

func (m *Model) syncFocus() {
	if m.session.Step == interview.StepInterviewing {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) showNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(renderTranscript(m.session, max(20, m.viewport.Width)))
	m.viewport.GotoBottom()
}

func (m Model) transcriptHeight() int {
	if m.height == 0 {
		return 20
	}
	// header, status, two dividers, input, notice, footer
	return max(5, m.height-8)
}

// isQuietError reports errors that were already surfaced as notices by the
// coach or that need no message at all.
func isQuietError(err error) bool {
	return errors.Is(err, interview.ErrBusy) ||
		errors.Is(err, interview.ErrEmptyAnswer) ||
		errors.Is(err, interview.ErrInvalidStep) ||
		errors.Is(err, interview.ErrRecording) ||
		errors.Is(err, capture.ErrPermissionDenied) ||
		errors.Is(err, capture.ErrNotRecording) ||
		errors.Is(err, gateway.ErrGateway) ||
		errors.Is(err, context.Canceled)
}

func actionFailure(action string, err error) string {
	switch action {
	case "start":
		return "Could not start the interview. Press Enter to try again."
	case "select":
		return err.Error()
	}
	return "Something went wrong: " + err.Error()
}

func indexOf[T comparable](items []T, v T) int {
	for i, it := range items {
		if it == v {
			return i
		}
	}
	return 0
}
