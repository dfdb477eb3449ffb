package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/carecoach/internal/interview"
	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

// View renders the full UI.
func (m Model) View() string {
	if m.session.Step == interview.StepSetup {
		return m.renderSetup()
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	divider := DividerStyle.Render(strings.Repeat("─", width))

	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		divider,
		m.viewport.View(),
		divider,
		m.renderInput(),
	}
	if m.notice != "" {
		sections = append(sections, m.renderNotice())
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderSetup() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("CARECOACH"))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("Interview practice for frontline care workers"))
	b.WriteString("\n\n")

	b.WriteString(CardHeadingStyle.Render("Region"))
	b.WriteString("\n")
	for i, r := range gateway.Regions() {
		name := fmt.Sprintf("%-13s", r)
		if i == m.regionIdx {
			b.WriteString(SelectedStyle.Render("> "+name) + " " + DimStyle.Render(r.Role()))
		} else {
			b.WriteString("  " + name + " " + DimStyle.Render(r.Role()))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(CardHeadingStyle.Render("Facility"))
	b.WriteString("\n  ")
	var facilities []string
	for i, f := range gateway.Facilities() {
		if i == m.facilityIdx {
			facilities = append(facilities, SelectedStyle.Render("["+string(f)+"]"))
		} else {
			facilities = append(facilities, DimStyle.Render(" "+string(f)+" "))
		}
	}
	b.WriteString(strings.Join(facilities, "  "))
	b.WriteString("\n\n")

	if m.busy {
		b.WriteString(m.spinner.View() + " " + DimStyle.Render("Connecting to your coach..."))
		b.WriteString("\n\n")
	}
	if m.notice != "" {
		b.WriteString(m.renderNotice())
		b.WriteString("\n\n")
	}

	b.WriteString(footer(
		[2]string{"↑↓", "Region"},
		[2]string{"←→", "Facility"},
		[2]string{"Enter", "Start"},
		[2]string{"q", "Quit"},
	))
	return b.String()
}

func (m Model) renderHeader() string {
	s := m.session
	title := TitleStyle.Render("CARECOACH")
	info := DimStyle.Render(fmt.Sprintf(" %s · %s · %s", s.Region, s.Region.Role(), s.Facility.Describe()))
	return title + info
}

func (m Model) renderStatusBar() string {
	s := m.session
	parts := []string{
		fmt.Sprintf("Question %d / %d", s.QuestionIndex, s.TotalQuestions),
		m.progress.ViewAs(progressRatio(s)),
	}

	switch {
	case m.recording:
		parts = append(parts, RecordingStyle.Render("● REC "+FormatElapsed(m.elapsed)))
	case m.busy:
		parts = append(parts, m.spinner.View()+" "+DimStyle.Render("Coach is thinking..."))
	}

	if m.coach.MicPermission() == capture.PermissionDenied {
		parts = append(parts, WarningStyle.Render("mic off, type your answers"))
	}
	if m.cameraOn {
		parts = append(parts, DimStyle.Render("[camera on]"))
	}
	if expr := s.Expression(); expr != "" {
		parts = append(parts, ExpressionStyle.Render("coach "+expr))
	}
	if s.Step == interview.StepFinished {
		parts = append(parts, SelectedStyle.Render("Interview complete"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderInput() string {
	switch m.session.Step {
	case interview.StepAwaitingNext:
		return DimStyle.Render("Press Enter for the next question.")
	case interview.StepFinished:
		return DimStyle.Render("Press Enter to start a new interview.")
	}
	return m.input.View()
}

func (m Model) renderNotice() string {
	if m.noticeErr {
		return ErrorStyle.Render("! " + m.notice)
	}
	return WarningStyle.Render(m.notice)
}

func (m Model) renderFooter() string {
	record := "Record"
	if m.recording {
		record = "Stop"
	}
	camera := "Camera on"
	if m.cameraOn {
		camera = "Camera off"
	}
	return footer(
		[2]string{"Enter", "Send"},
		[2]string{"^R", record},
		[2]string{"^N", "Next"},
		[2]string{"^P", "Replay"},
		[2]string{"^T", camera},
		[2]string{"^X", "Reset"},
		[2]string{"PgUp/PgDn", "Scroll"},
		[2]string{"Esc", "Quit"},
	)
}

func footer(items ...[2]string) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, FooterKeyStyle.Render(it[0])+FooterDescStyle.Render(" "+it[1]))
	}
	return strings.Join(parts, "  ")
}

// renderTranscript renders every turn, with a feedback card under each coach
// turn that carries an evaluation.
func renderTranscript(s interview.Session, width int) string {
	if len(s.Transcript) == 0 {
		return DimStyle.Render("  Waiting for the coach...")
	}
	textWidth := max(10, width-12)
	var lines []string
	for _, t := range s.Transcript {
		label := CandidateLabelStyle.Render("You:   ")
		if t.Speaker == gateway.SpeakerCoach {
			label = CoachLabelStyle.Render("Coach: ")
		}
		wrapped := wrapText(t.Text, textWidth)
		for i, wl := range wrapped {
			if t.Pending {
				wl = PendingStyle.Render(wl)
			}
			if i == 0 {
				lines = append(lines, "  "+label+wl)
			} else {
				lines = append(lines, "         "+wl)
			}
		}
		if t.Evaluation != nil {
			lines = append(lines, renderCard(*t.Evaluation, min(width-4, 76)))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func renderCard(ev gateway.Evaluation, width int) string {
	var b strings.Builder
	b.WriteString(ScoreStyle.Render(fmt.Sprintf("Score %d/%d", ev.Score, gateway.MaxScore)))
	inner := max(10, width-4)
	section := func(heading, body string) {
		if body == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(CardHeadingStyle.Render(heading))
		for _, l := range wrapText(body, inner) {
			b.WriteString("\n" + l)
		}
	}
	section("Strengths", ev.Strengths)
	section("To improve", ev.Improvement)
	section("Model answer", ev.ModelAnswer)
	return lipgloss.NewStyle().MarginLeft(2).Render(CardStyle.Width(width).Render(b.String()))
}

func progressRatio(s interview.Session) float64 {
	if s.TotalQuestions <= 0 {
		return 0
	}
	return float64(s.QuestionIndex) / float64(s.TotalQuestions)
}

// FormatElapsed renders d as m:ss.
func FormatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for paragraph := range strings.SplitSeq(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
