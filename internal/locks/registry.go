package locks

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const DefaultStripes = 1024

// Provider hands out the lock guarding an account id.
type Provider interface {
	LockFor(id int64) *FairLock
	// Len returns the number of distinct locks currently held by the provider.
	Len() int
}

// Registry keeps one fair lock per account id. Locks are created on first use and never removed,
// so memory grows with the number of distinct ids ever touched.
type Registry struct {
	locks sync.Map // int64 -> *FairLock
	size  atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) LockFor(id int64) *FairLock {
	if l, ok := r.locks.Load(id); ok {
		return l.(*FairLock)
	}

	l, loaded := r.locks.LoadOrStore(id, NewFairLock())
	if !loaded {
		r.size.Add(1)
	}
	return l.(*FairLock)
}

func (r *Registry) Len() int {
	return int(r.size.Load())
}

// StripedRegistry maps ids onto a fixed pool of locks. Unrelated ids sharing a stripe contend
// with each other, in exchange for bounded memory.
type StripedRegistry struct {
	stripes []*FairLock
}

func NewStriped(n int) *StripedRegistry {
	if n <= 0 {
		n = DefaultStripes
	}
	stripes := make([]*FairLock, n)
	for i := range stripes {
		stripes[i] = NewFairLock()
	}
	return &StripedRegistry{stripes: stripes}
}

func (r *StripedRegistry) LockFor(id int64) *FairLock {
	return r.stripes[r.stripe(id)]
}

func (r *StripedRegistry) Len() int {
	return len(r.stripes)
}

func (r *StripedRegistry) stripe(id int64) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return int(xxhash.Sum64(buf[:]) % uint64(len(r.stripes)))
}

// New returns the provider selected by mode ("account" or "striped").
func New(mode string, stripes int) Provider {
	if mode == "striped" {
		return NewStriped(stripes)
	}
	return NewRegistry()
}
