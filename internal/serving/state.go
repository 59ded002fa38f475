package serving

import (
	"sync/atomic"
	"time"

	"mlserved/internal/classifier"
)

// snapshot is one immutable generation of the serving state: the decoded
// model plus its identity. Readers hold a snapshot for the duration of a
// single operation; a concurrent swap cannot mutate it underneath them.
type snapshot struct {
	model    *classifier.Model
	version  int
	name     string
	loadedAt time.Time
}

// state holds the current snapshot behind a single atomic pointer.
// get never blocks and swap publishes a fully-built snapshot in one
// store, so no reader ever observes a half-constructed model.
type state struct {
	p atomic.Pointer[snapshot]
}

func (s *state) get() *snapshot { return s.p.Load() }

func (s *state) swap(sn *snapshot) { s.p.Store(sn) }
