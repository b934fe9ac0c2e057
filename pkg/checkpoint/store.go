// Package checkpoint persists execution loop state so interrupted runs can
// resume on the same thread without replaying completed work.
package checkpoint

import (
	"context"
	"strings"
	"time"
)

// Turn is a single transcript entry in an execution run
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Checkpoint is the full persisted state of one run thread
type Checkpoint struct {
	ThreadID  string    `json:"threadId"`
	Goal      string    `json:"goal"`
	Turns     []Turn    `json:"turns"`
	Iteration int       `json:"iteration"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists checkpoints keyed by thread id. Load returns (nil, nil)
// when no checkpoint exists for the thread.
type Store interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, threadID string) (*Checkpoint, error)
	Delete(ctx context.Context, threadID string) error
	List(ctx context.Context) ([]string, error)
}

// ThreadID derives a stable thread id from a session key and the resource
// the run operates on, so repeated questions about the same dashboard land
// on the same thread.
func ThreadID(sessionKey, resource string) string {
	clean := func(s string) string {
		s = strings.ReplaceAll(s, "/", "_")
		s = strings.ReplaceAll(s, "\\", "_")
		s = strings.ReplaceAll(s, "..", "_")
		return s
	}
	if resource == "" {
		return clean(sessionKey)
	}
	return clean(sessionKey) + "-" + clean(resource)
}
