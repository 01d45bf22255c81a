// Package session holds per-user interview state and the stores that keep it
// between requests.
package session

import "time"

// State is the position of a session in the interview lifecycle.
type State int

const (
	NotStarted State = iota
	InProgress
	Complete
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// TranscriptEntry is one answered question. Entries are never modified after
// they are appended.
type TranscriptEntry struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

// Session is the server-side state of one interview run.
type Session struct {
	UserName             string            `json:"user_name"`
	Email                string            `json:"email,omitempty"`
	Started              bool              `json:"started"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	CurrentQuestion      string            `json:"current_question,omitempty"`
	Transcript           []TranscriptEntry `json:"transcript"`
	StartedAt            time.Time         `json:"started_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// State reports the lifecycle state given the size of the question bank.
func (s *Session) State(questionCount int) State {
	switch {
	case !s.Started:
		return NotStarted
	case s.CurrentQuestionIndex >= questionCount:
		return Complete
	default:
		return InProgress
	}
}

// HasUser reports whether Start recorded a user name.
func (s *Session) HasUser() bool {
	return s.Started && s.UserName != ""
}

// Append records an answer to the current question.
func (s *Session) Append(question, response string) {
	s.Transcript = append(s.Transcript, TranscriptEntry{Question: question, Response: response})
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.Transcript != nil {
		c.Transcript = make([]TranscriptEntry, len(s.Transcript))
		copy(c.Transcript, s.Transcript)
	}
	return &c
}
