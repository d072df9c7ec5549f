package align

import (
	"math/bits"
	"sync"
)

// Pool recycles aligned buffers in power-of-two size classes. Its free lists
// are the only shared state; one mutex guards them and is never held while
// a buffer is in use.
type Pool struct {
	alignment int

	mu     sync.Mutex
	free   [][]*Buffer // indexed by size class
	stats  PoolStats
	closed bool
}

// PoolStats reports pool activity.
type PoolStats struct {
	Hits        int64
	Misses      int64
	Outstanding int64 // buffers handed out and not yet returned
	CachedBytes int64
}

// NewPool returns a pool whose buffers share one alignment.
func NewPool(alignment int) (*Pool, error) {
	if err := checkAlignment(alignment); err != nil {
		return nil, err
	}
	return &Pool{alignment: alignment}, nil
}

// Alignment returns the alignment of every buffer the pool hands out.
func (p *Pool) Alignment() int {
	return p.alignment
}

func sizeClass(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size - 1))
}

// Get returns a buffer with at least size usable bytes; Len reports exactly
// size. Return it with Put.
func (p *Pool) Get(size int) (*Buffer, error) {
	if size < 0 {
		return Alloc(size, p.alignment)
	}
	class := sizeClass(size)

	p.mu.Lock()
	if class < len(p.free) && len(p.free[class]) > 0 {
		list := p.free[class]
		b := list[len(list)-1]
		p.free[class] = list[:len(list)-1]
		p.stats.Hits++
		p.stats.Outstanding++
		p.stats.CachedBytes -= int64(cap(b.mem))
		p.mu.Unlock()
		b.mem = b.mem[:size]
		return b, nil
	}
	p.stats.Misses++
	p.mu.Unlock()

	b, err := Alloc(1<<class, p.alignment)
	if err != nil {
		return nil, err
	}
	b.class = class
	b.mem = b.mem[:size]

	p.mu.Lock()
	p.stats.Outstanding++
	p.mu.Unlock()
	return b, nil
}

// GetFloats returns a pooled buffer sized for n elements of elemSize bytes.
func (p *Pool) GetFloats(n, elemSize int) (*Buffer, error) {
	return p.Get(n * elemSize)
}

// Put returns b to the pool. Buffers not obtained from a Pool are freed.
// After Release the pool frees everything it is given.
func (p *Pool) Put(b *Buffer) {
	if b == nil || b.Freed() {
		return
	}
	if b.class < 0 {
		b.Free()
		return
	}
	b.mem = b.mem[:cap(b.mem)]

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Outstanding--
	if p.closed {
		b.Free()
		return
	}
	for len(p.free) <= b.class {
		p.free = append(p.free, nil)
	}
	p.free[b.class] = append(p.free[b.class], b)
	p.stats.CachedBytes += int64(cap(b.mem))
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Release frees every cached buffer. Outstanding buffers are freed when
// they are Put back.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, list := range p.free {
		for _, b := range list {
			b.Free()
		}
	}
	p.free = nil
	p.stats.CachedBytes = 0
	p.closed = true
}
