// Package transcript is an append-only, strictly-ordered conversation log.
// Each turn is content-hashed and chained to its predecessor, making the
// transcript an audit-stable append log.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable entry in the conversation transcript.
type Turn struct {
	// ID is unique within the owning log, assigned from a monotonic counter.
	ID int64 `json:"id"`

	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	// Sources lists citation labels; present only on assistant turns that
	// succeeded via the completion path.
	Sources []string `json:"sources,omitempty"`

	// Hash is the content-addressed identifier (SHA-256, hex-encoded).
	Hash string `json:"hash"`

	// ParentHash links to the previous turn's hash, nil for the first turn.
	ParentHash *string `json:"parent_hash,omitempty"`
}

// input is the canonical hashable representation of a turn.
type input struct {
	ID        int64    `json:"id"`
	Role      Role     `json:"role"`
	Text      string   `json:"text"`
	CreatedAt int64    `json:"created_at"` // UnixNano, for deterministic encoding
	Sources   []string `json:"sources,omitempty"`
	Parent    string   `json:"parent,omitempty"`
}

// computeHash calculates the content-addressed hash for a turn.
func (t *Turn) computeHash() string {
	i := &input{
		ID:        t.ID,
		Role:      t.Role,
		Text:      t.Text,
		CreatedAt: t.CreatedAt.UnixNano(),
		Sources:   t.Sources,
	}

	if t.ParentHash != nil {
		i.Parent = *t.ParentHash
	}

	// Canonical JSON encoding for deterministic hashing
	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
