package ids

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Supported identifier schemes.
const (
	SchemeULID = "ulid"
	SchemeUUID = "uuid"
)

// Generator returns a fresh identifier on every call.
type Generator func() string

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// CreateUUID returns a random version 4 UUID in canonical form.
func CreateUUID() string {
	return uuid.NewString()
}

// ForScheme resolves a generator by name. An empty scheme selects ULIDs.
func ForScheme(scheme string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeULID:
		return CreateULID, nil
	case SchemeUUID:
		return CreateUUID, nil
	default:
		return nil, fmt.Errorf("ids: unsupported scheme %q", scheme)
	}
}
