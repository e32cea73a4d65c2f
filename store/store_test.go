package store

import (
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s := New(filepath.Join(dir, "images"), filepath.Join(dir, "jobs"))
	assert.NilError(t, s.EnsureDirs())
	s.Attrs = sidecarAttrs{} // deterministic across test environments
	return s
}

func TestNextJobIDMonotonic(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.NextJobID()
	assert.NilError(t, err)
	assert.Equal(t, id1, int64(1))

	id2, err := s.NextJobID()
	assert.NilError(t, err)
	assert.Equal(t, id2, int64(2))
	assert.Assert(t, id2 > id1)
}

func TestNextJobIDConcurrentSerialized(t *testing.T) {
	s := newTestStore(t)

	const n = 50
	ids := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := s.NextJobID()
			ids <- id
			errs <- err
		}()
	}
	seen := map[int64]bool{}
	for i := 0; i < n; i++ {
		assert.NilError(t, <-errs)
		id := <-ids
		assert.Assert(t, !seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Equal(t, len(seen), n)
}

func TestAttrRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id, err := s.NextJobID()
	assert.NilError(t, err)
	assert.NilError(t, s.CreateJobDir(id))

	props := s.JobProperties(id)

	_, ok, err := s.GetAttr(props, AttrState)
	assert.NilError(t, err)
	assert.Assert(t, !ok, "attribute should be absent before it is set")

	assert.NilError(t, s.SetAttr(props, AttrState, "started"))
	v, ok, err := s.GetAttr(props, AttrState)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, v, "started")

	assert.NilError(t, s.RemoveAttr(props, AttrState))
	_, ok, err = s.GetAttr(props, AttrState)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
}

func TestCreateJobDirIdempotent(t *testing.T) {
	s := newTestStore(t)
	id, err := s.NextJobID()
	assert.NilError(t, err)
	assert.NilError(t, s.CreateJobDir(id))
	assert.NilError(t, s.CreateJobDir(id))
	assert.Assert(t, Exists(s.JobProperties(id)))
}
