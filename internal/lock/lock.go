// Package lock serializes uploads per tenant.
//
// Two implementations satisfy gradebook.Locker: LocalLocker for a single
// process and RedisLocker for a fleet sharing one Redis. Both return
// ok=false when the key stays held past the configured wait.
package lock

import (
	"errors"
	"time"
)

// ErrTooManyUploads is returned when all upload slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyUploads = errors.New("too many uploads in progress, please try again later")

const (
	// DefaultMaxConcurrent is the default limit for parallel uploads across
	// all tenants.
	DefaultMaxConcurrent = 5

	// DefaultWait is how long Acquire waits for a busy key.
	DefaultWait = 5 * time.Second

	// DefaultTTL bounds how long a crashed holder can keep a Redis key.
	DefaultTTL = 2 * time.Minute
)
