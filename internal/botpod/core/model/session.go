package model

import "time"

// ExitReason names the signal that ended a session.
type ExitReason string

const (
	ExitDisconnected ExitReason = "disconnected"
	ExitManual       ExitReason = "manual"
	ExitUnload       ExitReason = "unload"
)

// Valid reports whether r is one of the known exit reasons.
func (r ExitReason) Valid() bool {
	switch r {
	case ExitDisconnected, ExitManual, ExitUnload:
		return true
	}
	return false
}

// Session is one active conferencing connection, optionally bound to a pod.
type Session struct {
	ID        string     `json:"id"`
	PodID     string     `json:"podId,omitempty"`
	BotName   string     `json:"botName,omitempty"`
	Room      string     `json:"room,omitempty"`
	OpenedAt  time.Time  `json:"openedAt"`
	ExitedAt  *time.Time `json:"exitedAt,omitempty"`
	ExitCause ExitReason `json:"exitReason,omitempty"`
}

// PodBacked reports whether the session owns a pod.
func (s *Session) PodBacked() bool {
	return s.PodID != ""
}
