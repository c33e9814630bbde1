package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewIdempotencyKey returns a lexicographically sortable identifier attached to
// mutating API calls so the backend can deduplicate replays.
func NewIdempotencyKey() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewRequestID returns a random identifier attached to every outbound request
// for log correlation.
func NewRequestID() string {
	return uuid.NewString()
}
