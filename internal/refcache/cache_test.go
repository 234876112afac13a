package refcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idM = "65f1a2b3c4d5e6f708192a3b"
	idL = "65f1a2b3c4d5e6f708192a3c"
)

func TestRecordIsIdempotent(t *testing.T) {
	once := New()
	once.Record(KindSize, Reference{ID: idM, Name: "M"})

	twice := New()
	twice.Record(KindSize, Reference{ID: idM, Name: "M"})
	twice.Record(KindSize, Reference{ID: idM, Name: "M"})

	for _, c := range []*Cache{once, twice} {
		id, ok := c.ResolveID(KindSize, "M")
		require.True(t, ok)
		assert.Equal(t, idM, id)
		name, ok := c.ResolveName(KindSize, idM)
		require.True(t, ok)
		assert.Equal(t, "M", name)
		assert.Equal(t, 1, c.Len(KindSize))
	}
	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestRecordIgnoresUnpopulatedReference(t *testing.T) {
	c := New()
	c.Record(KindSize, Reference{ID: idM})
	c.Record(KindSize, Reference{Name: "M"})

	_, ok := c.ResolveName(KindSize, idM)
	assert.False(t, ok)
	_, ok = c.ResolveID(KindSize, "M")
	assert.False(t, ok)
	assert.Zero(t, c.Len(KindSize))
}

func TestNameKeepsFirstObservedID(t *testing.T) {
	c := New()
	c.Record(KindSize, Reference{ID: idM, Name: "M"})
	c.Record(KindSize, Reference{ID: idL, Name: "M"})

	id, ok := c.ResolveID(KindSize, "M")
	require.True(t, ok)
	assert.Equal(t, idM, id)
}

func TestKindsAreIndependent(t *testing.T) {
	c := New()
	c.Record(KindProductType, Reference{ID: idM, Name: "Hoodie"})

	_, ok := c.ResolveID(KindSize, "Hoodie")
	assert.False(t, ok)
	name, ok := c.ResolveName(KindProductType, idM)
	require.True(t, ok)
	assert.Equal(t, "Hoodie", name)
}

func TestClearResetsAndNotifies(t *testing.T) {
	seen := map[Kind]int{}
	c := New(WithObserver(func(kind Kind, n int) { seen[kind] = n }))
	c.Record(KindSize, Reference{ID: idM, Name: "M"})
	c.Record(KindSize, Reference{ID: idL, Name: "L"})
	assert.Equal(t, 2, seen[KindSize])

	c.Clear()
	assert.Zero(t, c.Len(KindSize))
	assert.Equal(t, 0, seen[KindSize])
	_, ok := c.ResolveID(KindSize, "M")
	assert.False(t, ok)
}

func TestConcurrentRecordAndResolve(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Record(KindSize, Reference{ID: idM, Name: "M"})
		}()
		go func() {
			defer wg.Done()
			c.ResolveID(KindSize, "M")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len(KindSize))
}

func TestLooksLikeID(t *testing.T) {
	assert.True(t, LooksLikeID(idM))
	assert.False(t, LooksLikeID("M"))
	assert.False(t, LooksLikeID("65f1a2b3c4d5e6f708192a3"))
}
