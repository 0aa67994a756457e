// Package fence orders concurrent mutations of the same entity. Every
// mutation takes a ticket before its request goes out; when the response
// arrives it may only be applied if no newer ticket for that entity has been
// applied already.
package fence

import "sync"

type Ticket struct {
	key string
	seq uint64
}

func (t Ticket) Key() string { return t.key }

type Fence struct {
	mu        sync.Mutex
	issued    map[string]uint64
	applied   map[string]uint64
	epoch     uint64
	appliedAt map[string]uint64
}

func New() *Fence {
	return &Fence{issued: map[string]uint64{}, applied: map[string]uint64{}, appliedAt: map[string]uint64{}}
}

// Begin issues the next ticket for key.
func (f *Fence) Begin(key string) Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued[key]++
	return Ticket{key: key, seq: f.issued[key]}
}

// Apply runs fn and returns true when t is newer than every ticket already
// applied for its key. A stale ticket is dropped and fn is not called. fn
// runs under the fence lock so the check and the cache write are atomic.
func (f *Fence) Apply(t Ticket, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.seq <= f.applied[t.key] {
		return false
	}
	f.applied[t.key] = t.seq
	f.epoch++
	f.appliedAt[t.key] = f.epoch
	if fn != nil {
		fn()
	}
	return true
}

// Applied reports the newest applied sequence for key, 0 when none.
func (f *Fence) Applied(key string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied[key]
}

// Epoch is a watermark over every key. Take it before a bulk read and pass
// it to ChangedSince when the read returns.
func (f *Fence) Epoch() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch
}

// ChangedSince reports whether a mutation for key was applied after epoch.
// Bulk reads must not overwrite such entries.
func (f *Fence) ChangedSince(key string, epoch uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appliedAt[key] > epoch
}

// Locked runs fn under the fence lock, so a bulk cache write cannot
// interleave with Apply.
func (f *Fence) Locked(fn func(changedSince func(key string, epoch uint64) bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(func(key string, epoch uint64) bool { return f.appliedAt[key] > epoch })
}
