package syncmap

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapBasics(t *testing.T) {
	m := New[string, int]()

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Put("a", 1)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	m.Put("a", 2)
	v, _ = m.Get("a")
	assert.Equal(t, 2, v)

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestPutIfAbsentIsAtomic(t *testing.T) {
	m := New[string, int]()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if m.PutIfAbsent("key", i) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, m.Len())
}

func TestRangeStopsEarly(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 10; i++ {
		m.Put(i, i)
	}

	seen := 0
	m.Range(func(int, int) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}
