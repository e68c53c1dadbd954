package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreSetGetClear(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("sess-1")
	assert.False(t, ok)

	s.Set("sess-1", "hunter2")
	secret, ok := s.Get("sess-1")
	assert.True(t, ok)
	assert.Equal(t, "hunter2", secret)

	s.Clear("sess-1")
	_, ok = s.Get("sess-1")
	assert.False(t, ok)
}

func TestStoreIsolatesSessions(t *testing.T) {
	s := NewStore()
	s.Set("sess-1", "secret-a")
	s.Set("sess-2", "secret-b")

	a, _ := s.Get("sess-1")
	b, _ := s.Get("sess-2")
	assert.Equal(t, "secret-a", a)
	assert.Equal(t, "secret-b", b)

	s.End("sess-1")
	_, ok := s.Get("sess-1")
	assert.False(t, ok)
	_, ok = s.Get("sess-2")
	assert.True(t, ok)
}

func TestClearIsIdempotent(t *testing.T) {
	s := NewStore()
	assert.NotPanics(t, func() {
		s.Clear("never-set")
		s.Clear("never-set")
	})
}
