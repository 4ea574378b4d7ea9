package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// QueueStats exposes worker pool occupancy.
type QueueStats interface {
	Running() int
}

// Providers reports the configured embedding providers.
type Providers interface {
	Names() []string
}
