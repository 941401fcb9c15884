// Package conversations stores the committed history of a dialogue session.
package conversations

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Item is one committed utterance of the conversation.
type Item struct {
	Role   Role
	Text   string
	TurnID uuid.UUID
	// Truncated marks agent text that was cut short by an interruption. It is
	// only ever set when the session keeps interrupted responses.
	Truncated bool
}

// Log is an append-only, ordered conversation history. It is safe for
// concurrent use; the orchestrator is the only writer.
type Log struct {
	mu    sync.RWMutex
	items []Item
}

func NewLog() *Log {
	return &Log{}
}

// Append adds item at the end of the log.
func (l *Log) Append(item Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Snapshot returns a detached copy of the log, oldest item first.
func (l *Log) Snapshot() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := []Item{}
	if err := copier.CopyWithOption(&snapshot, l.items, copier.Option{DeepCopy: true}); err != nil {
		snapshot = append(snapshot, l.items...)
	}
	return snapshot
}

// Values iterates over the log from the earliest towards the latest item.
func (l *Log) Values(yield func(Item) bool) {
	for _, item := range l.Snapshot() {
		if !yield(item) {
			return
		}
	}
}

// RValues iterates over the log from the latest towards the earliest item.
func (l *Log) RValues(yield func(Item) bool) {
	items := l.Snapshot()
	for i := len(items) - 1; i >= 0; i-- {
		if !yield(items[i]) {
			return
		}
	}
}
