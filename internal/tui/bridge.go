package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/carecoach/internal/interview"
)

// Bridge forwards coach and capture callbacks to a running program. The
// coach is built before the program exists, so the program is attached
// later; messages sent before that are dropped.
type Bridge struct {
	mu sync.RWMutex
	p  *tea.Program
}

// Attach starts forwarding to p. Pass nil to stop.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	p := b.p
	b.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// CoachOptions returns the coach callbacks that feed the program.
func (b *Bridge) CoachOptions() []interview.Option {
	return []interview.Option{
		interview.WithOnChange(func(s interview.Session) { b.send(SessionMsg{Session: s}) }),
		interview.WithOnBusy(func(busy bool) { b.send(BusyMsg{Busy: busy}) }),
		interview.WithOnNotice(func(n interview.Notice) { b.send(NoticeMsg{Notice: n}) }),
	}
}

// RecordingTick is a capture tick handler.
func (b *Bridge) RecordingTick(elapsed time.Duration) {
	b.send(RecordingTickMsg{Elapsed: elapsed})
}
