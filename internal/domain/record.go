package domain

import "time"

// TransitionRecord is the audit trail entry for one applied event.
type TransitionRecord struct {
	ID     string    `json:"id"`
	Task   string    `json:"task"`
	Kind   Kind      `json:"kind"`
	Event  string    `json:"event"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Folder Folder    `json:"folder"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}
