package modules

// Record is a loaded module: its normalized cache key, the URI it was loaded
// from (the base for further relative requires inside that module), and the
// engine-owned exports value.
type Record struct {
	Key     string
	URI     URI
	Exports any
}

// Cache memoizes loaded modules for the lifetime of one engine context.
// Entries are never invalidated while the context lives, even if the
// underlying file changes: a script run sees a stable view of its modules.
// Clearing happens only on context reset or disposal.
//
// The cache is accessed from the single evaluation goroutine of its owning
// context and therefore carries no locking.
type Cache struct {
	records map[string]*Record
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[string]*Record)}
}

// Get returns the record stored under key, if any.
func (c *Cache) Get(key string) (*Record, bool) {
	rec, ok := c.records[key]
	return rec, ok
}

// Put stores a record under its key. Load or compile failures must never be
// stored: a retry after the source is fixed has to succeed without a
// context reset.
func (c *Cache) Put(rec *Record) {
	if rec == nil {
		return
	}
	c.records[rec.Key] = rec
}

// Delete removes the record stored under key, e.g. after a module body
// failed part-way through.
func (c *Cache) Delete(key string) {
	delete(c.records, key)
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	return len(c.records)
}

// Clear discards every record. Called on context reset and disposal.
func (c *Cache) Clear() {
	c.records = make(map[string]*Record)
}

// CacheKey derives the cache key for a module resolved at uri. Keys are the
// normalized resolved URI, so one module reached through different
// specifiers (bare, relative, with or without suffix) shares a single cache
// entry. Anything else would let a mixed-specifier require cycle instantiate
// the same module twice.
func CacheKey(uri URI) string {
	return uri.Normalized().String()
}
