package tui

import (
	"time"

	"github.com/MrWong99/carecoach/internal/interview"
)

// SessionMsg carries a new session snapshot published by the coach.
type SessionMsg struct {
	Session interview.Session
}

// BusyMsg reports a change of the coach's busy guard.
type BusyMsg struct {
	Busy bool
}

// NoticeMsg carries a user-facing notice.
type NoticeMsg struct {
	Notice interview.Notice
}

// RecordingTickMsg carries the elapsed time of the running recording.
type RecordingTickMsg struct {
	Elapsed time.Duration
}

// actionDoneMsg is returned by the command that ran a coach action.
type actionDoneMsg struct {
	action string
	err    error
}

// cameraMsg is returned by the camera toggle command.
type cameraMsg struct {
	on  bool
	err error
}

// clearNoticeMsg clears a notice after a timeout. seq guards against
// clearing a newer notice.
type clearNoticeMsg struct {
	seq int
}
