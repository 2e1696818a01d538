package tui

import (
	"dailydigest/internal/digest"
	"dailydigest/internal/session"
)

type sessionMsg struct {
	snapshot session.Snapshot
}

type authResultMsg struct {
	err error
}

// toLoginMsg is sent by the session when it needs the login screen.
type toLoginMsg struct{}

// digestChangedMsg tells the model to re-read the controller state.
type digestChangedMsg struct {
	ctrl *digest.Controller
}

type readingListMsg struct {
	state digest.ReadingListState
}

// opErrMsg reports a failed background action in the status line.
type opErrMsg struct {
	err error
}
