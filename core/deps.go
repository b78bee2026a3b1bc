package core

import (
	"time"

	"pkt.systems/pslog"
)

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	Executor Executor
	// Store defaults to a file store under the configured state directory.
	Store     KVStore
	EventSink EventSink
	Logger    pslog.Logger
	// Clock overrides time.Now for result timestamps.
	Clock func() time.Time
}
