package domain

import "time"

// Checkpoint is an immutable snapshot of a thread's state together with the
// node scheduled to run next. A non-empty Next means the thread is paused.
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	ID        string    `json:"checkpoint_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Step      int64     `json:"step"`
	State     State     `json:"state"`
	Next      string    `json:"next,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Paused reports whether the checkpoint is waiting for external input.
func (c *Checkpoint) Paused() bool {
	return c != nil && c.Next != ""
}
