package transcript

import (
	"sync"
	"time"
)

// Log holds the ordered sequence of turns for one conversation. Insertion
// order is display order. Turns are never reordered or removed, and are
// immutable once appended: updates are new turns, never in-place mutation.
type Log struct {
	mu     sync.Mutex
	nextID int64
	turns  []Turn
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a turn with the given role, text and sources at the end of the
// log and returns it. IDs come from a per-log counter, so turns created
// within the same instant cannot collide. O(1) amortized.
func (l *Log) Append(role Role, text string, sources []string) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn := Turn{
		ID:        l.nextID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
		Sources:   copySources(sources),
	}
	l.nextID++

	if n := len(l.turns); n > 0 {
		parent := l.turns[n-1].Hash
		turn.ParentHash = &parent
	}
	turn.Hash = turn.computeHash()

	l.turns = append(l.turns, turn)
	return copyTurn(turn)
}

// Snapshot returns the current ordered sequence without aliasing internal
// storage.
func (l *Log) Snapshot() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]Turn, len(l.turns))
	for i, turn := range l.turns {
		snapshot[i] = copyTurn(turn)
	}
	return snapshot
}

// Len returns the number of turns in the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// copyTurn detaches a turn from internal storage: the sources slice and the
// parent hash pointer are both replaced with fresh copies, so no caller can
// reach the stored chain through a returned value.
func copyTurn(turn Turn) Turn {
	turn.Sources = copySources(turn.Sources)
	if turn.ParentHash != nil {
		parent := *turn.ParentHash
		turn.ParentHash = &parent
	}
	return turn
}

func copySources(sources []string) []string {
	if sources == nil {
		return nil
	}
	out := make([]string, len(sources))
	copy(out, sources)
	return out
}
