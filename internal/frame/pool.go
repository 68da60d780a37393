package frame

import (
	"container/list"
	"sync"
)

// BufferPool caches byte buffers keyed by their size rounded up to a fixed
// threshold, so that messages of similar length reuse the same allocation
// instead of churning the heap on every frame.
//
// The pool holds at most one buffer per rounded size class and evicts the
// least recently returned class once the capacity is exceeded. Get removes
// the buffer from the pool (the caller owns it until Put).
type BufferPool struct {
	mu        sync.Mutex
	threshold int
	capacity  int
	order     *list.List // front = most recently returned
	classes   map[int]*list.Element
}

type poolEntry struct {
	size int
	buf  []byte
}

// NewBufferPool creates a pool holding up to capacity size classes, with
// buffer sizes rounded up to multiples of threshold.
func NewBufferPool(threshold, capacity int) *BufferPool {
	if threshold < 1 {
		threshold = 1
	}
	return &BufferPool{
		threshold: threshold,
		capacity:  capacity,
		order:     list.New(),
		classes:   make(map[int]*list.Element),
	}
}

func (p *BufferPool) roundUp(size int) int {
	return (size + p.threshold - 1) / p.threshold * p.threshold
}

// Get returns a buffer with capacity for at least size bytes, reusing a
// cached one when the rounded size class is available.
func (p *BufferPool) Get(size int) []byte {
	rounded := p.roundUp(size)

	p.mu.Lock()
	if elem, ok := p.classes[rounded]; ok {
		entry := elem.Value.(*poolEntry)
		p.order.Remove(elem)
		delete(p.classes, rounded)
		p.mu.Unlock()
		return entry.buf[:0]
	}
	p.mu.Unlock()

	return make([]byte, 0, rounded)
}

// Put returns a buffer to the pool. Buffers whose capacity is not a clean
// size class multiple are rounded down to the class they fit.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	class := cap(buf) / p.threshold * p.threshold
	if class == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.classes[class]; ok {
		// Keep the newest buffer for the class and refresh its recency.
		elem.Value.(*poolEntry).buf = buf
		p.order.MoveToFront(elem)
		return
	}
	p.classes[class] = p.order.PushFront(&poolEntry{size: class, buf: buf})

	for p.order.Len() > p.capacity {
		oldest := p.order.Back()
		p.order.Remove(oldest)
		delete(p.classes, oldest.Value.(*poolEntry).size)
	}
}

// Len reports how many size classes are currently cached.
func (p *BufferPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}
