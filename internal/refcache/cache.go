// Package refcache maps catalog reference identifiers (sizes, product types)
// to their human-readable names and back. It is filled as a side effect of
// reading catalog responses and never evicts.
package refcache

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Kind names a reference family.
type Kind string

const (
	KindSize        Kind = "size"
	KindProductType Kind = "productType"
)

// Kinds lists every reference kind.
var Kinds = []Kind{KindSize, KindProductType}

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// LooksLikeID reports whether v has the shape of a backend object id rather
// than a plain name.
func LooksLikeID(v string) bool {
	return objectIDPattern.MatchString(strings.TrimSpace(v))
}

// Reference is a populated reference object as seen on the wire.
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Populated reports whether the reference carries both halves.
func (r Reference) Populated() bool {
	return strings.TrimSpace(r.ID) != "" && strings.TrimSpace(r.Name) != ""
}

type table struct {
	idByName map[string]string
	byID     map[string]Reference
}

func newTable() *table {
	return &table{idByName: map[string]string{}, byID: map[string]Reference{}}
}

// Observer is told the number of known references for a kind after it grows
// or is cleared.
type Observer func(kind Kind, n int)

// Option configures a Cache.
type Option func(*Cache)

// WithObserver registers fn to be called after the cache changes.
func WithObserver(fn Observer) Option {
	return func(c *Cache) { c.observer = fn }
}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	tables   map[Kind]*table
	observer Observer
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{tables: map[Kind]*table{}}
	for _, kind := range Kinds {
		c.tables[kind] = newTable()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Record stores ref in both directions. A reference without a name is
// ignored, and a name keeps the first id it was seen with.
func (c *Cache) Record(kind Kind, ref Reference) {
	if !ref.Populated() {
		return
	}
	id := strings.TrimSpace(ref.ID)
	name := strings.TrimSpace(ref.Name)

	c.mu.Lock()
	t := c.table(kind)
	changed := false
	if _, ok := t.idByName[name]; !ok {
		t.idByName[name] = id
		changed = true
	}
	if _, ok := t.byID[id]; !ok {
		t.byID[id] = Reference{ID: id, Name: name}
		changed = true
	}
	n := len(t.byID)
	c.mu.Unlock()

	if changed && c.observer != nil {
		c.observer(kind, n)
	}
}

// ResolveID returns the id recorded for name.
func (c *Cache) ResolveID(kind Kind, name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[kind]
	if !ok {
		return "", false
	}
	id, ok := t.idByName[strings.TrimSpace(name)]
	return id, ok
}

// ResolveName returns the name recorded for id.
func (c *Cache) ResolveName(kind Kind, id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[kind]
	if !ok {
		return "", false
	}
	ref, ok := t.byID[strings.TrimSpace(id)]
	return ref.Name, ok
}

// Len returns how many ids are known for kind.
func (c *Cache) Len(kind Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.tables[kind]; ok {
		return len(t.byID)
	}
	return 0
}

// Snapshot copies the known references of every kind, sorted by name.
func (c *Cache) Snapshot() map[Kind][]Reference {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Kind][]Reference, len(c.tables))
	for kind, t := range c.tables {
		refs := make([]Reference, 0, len(t.byID))
		for _, ref := range t.byID {
			refs = append(refs, ref)
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
		out[kind] = refs
	}
	return out
}

// Clear forgets everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	kinds := make([]Kind, 0, len(c.tables))
	for kind := range c.tables {
		c.tables[kind] = newTable()
		kinds = append(kinds, kind)
	}
	c.mu.Unlock()

	if c.observer != nil {
		for _, kind := range kinds {
			c.observer(kind, 0)
		}
	}
}

// table must be called with mu held for writing.
func (c *Cache) table(kind Kind) *table {
	t, ok := c.tables[kind]
	if !ok {
		t = newTable()
		c.tables[kind] = t
	}
	return t
}
