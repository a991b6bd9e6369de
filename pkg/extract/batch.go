package extract

import "strings"

// Batch tracks the entities stored during a single extraction run, mapping
// the names the model produced to their persisted ids. Relationship endpoints
// are resolved against the batch only, so names from one run never leak into
// another.
type Batch struct {
	ids map[string]string
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{ids: make(map[string]string)}
}

func batchKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Put records the persisted id for an extracted entity name.
func (b *Batch) Put(name, id string) {
	if name == "" || id == "" {
		return
	}
	b.ids[batchKey(name)] = id
}

// Resolve looks up the persisted id for an entity name, case-insensitively.
func (b *Batch) Resolve(name string) (string, bool) {
	id, ok := b.ids[batchKey(name)]
	return id, ok
}

// Len reports how many entities the batch has recorded.
func (b *Batch) Len() int {
	return len(b.ids)
}
