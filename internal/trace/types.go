package trace

import "time"

// Invocation is one finished handler run.
type Invocation struct {
	ID         string    `json:"id"`
	Handler    string    `json:"handler"`
	Verb       string    `json:"verb"`
	Room       string    `json:"room"`
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name"`
	Requests   []string  `json:"requests"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Duration is how long the run took
func (i Invocation) Duration() time.Duration {
	return i.FinishedAt.Sub(i.StartedAt)
}

// Failed reports whether the run ended in an unhandled failure
func (i Invocation) Failed() bool {
	return i.Error != ""
}

// HandlerStats aggregates every run of one handler since startup.
type HandlerStats struct {
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
	LastRun  time.Time `json:"last_run"`
}
