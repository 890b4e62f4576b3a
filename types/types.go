package types

import "time"

// ---- Service state (retained) ----

// Link is the state reported by a service or battery.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
	LinkIdle     Link = "idle"
	LinkError    Link = "error"
)

// State is published retained on battery/<id>/state and bridge/state.
type State struct {
	Level  Link   `json:"level"`
	Status string `json:"status"` // short machine string
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

func NewState(level Link, status string, err error) State {
	s := State{Level: level, Status: status, TS: NowMS()}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func NowMS() int64 { return time.Now().UnixMilli() }

// ---- Generic replies ----

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
