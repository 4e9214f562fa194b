package monitor

import (
	"context"
	"time"
)

// Fetcher retrieves the raw page. It never returns an error; failures are
// reported through FetchResult.Unavailable.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// Normalizer turns raw page text into a comparable Snapshot.
type Normalizer interface {
	Normalize(raw string) Snapshot
}

// Differ produces a header-less unified diff of two texts.
type Differ interface {
	Diff(previous, current string) string
}

// Recorder appends change records to persistent storage.
type Recorder interface {
	Append(ctx context.Context, record ChangeRecord) error
	Path() string
}

// Notifier delivers operator notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Clock returns the current time in the monitor's display zone.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces per-tick correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests of snapshot projections.
type Hasher interface {
	Hash(data []byte) (string, error)
}
