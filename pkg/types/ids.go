// Package types provides the core data model shared by every subsystem:
// tasks, intents, verdicts, sessions, and the memory hierarchy.
package types

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu     sync.Mutex
	idSource = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new sortable, time-ordered 26-character identifier.
// A package-level monotonic entropy source is serialized under a mutex so
// that IDs minted within the same millisecond still sort strictly by
// creation order, matching the "sortable time-ordered 128-bit identifier"
// requirement for Task, Session, Intent, and Snapshot ids.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idSource).String()
}
