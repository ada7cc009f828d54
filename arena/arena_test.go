package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBorrowedIsZeroCopy(t *testing.T) {
	buf := []byte("hello")
	s := Borrowed(buf)
	assert.False(t, s.Owned())
	assert.Equal(t, 5, s.Len())
	assert.True(t, &buf[0] == &s.Bytes()[0])
	s.Release() // no-op
	s.Release()
}

func TestAllocateExactLength(t *testing.T) {
	p := NewPool()
	for _, n := range []int{0, 1, 31, 32, 33, 4096, 65535, 1 << 20} {
		s := p.Allocate(n)
		assert.True(t, s.Owned())
		assert.Equal(t, n, s.Len(), "n=%d", n)
		s.Release()
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	p := NewPool()
	s := p.Allocate(16)
	s.Release()
	assert.Panics(t, func() { s.Release() })
}

func TestRetain(t *testing.T) {
	p := NewPool()
	s := p.Allocate(16)
	s2 := s.Retain()
	s.Release()
	copy(s2.Bytes(), "still alive")
	assert.Equal(t, []byte("still alive"), s2.Bytes()[:11])
	s2.Release()
}

func TestNegativeAllocationPanics(t *testing.T) {
	p := NewPool()
	assert.Panics(t, func() { p.Allocate(-1) })
}
