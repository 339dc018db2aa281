package menu

import (
	"sync/atomic"

	"ai-waiter-service/pkg/utils"
)

// Index maps normalized names and aliases to canonical item ids, and ids to
// full item records. Built once per catalog fetch; read-only afterwards.
type Index struct {
	byKey map[string]string
	byID  map[string]Item
	size  int
}

// BuildIndex constructs a fresh index from the given items. Name and alias
// keys are lowercased and whitespace-collapsed; the first item to claim a
// key wins so duplicate aliases stay deterministic.
func BuildIndex(items []Item) *Index {
	idx := &Index{
		byKey: make(map[string]string, len(items)*2),
		byID:  make(map[string]Item, len(items)),
		size:  len(items),
	}
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		idx.byID[it.ID] = it
		if key := utils.NormalizeKey(it.Name); key != "" {
			if _, taken := idx.byKey[key]; !taken {
				idx.byKey[key] = it.ID
			}
		}
		for _, alias := range it.Aliases {
			if key := utils.NormalizeKey(alias); key != "" {
				if _, taken := idx.byKey[key]; !taken {
					idx.byKey[key] = it.ID
				}
			}
		}
	}
	return idx
}

// Len returns the number of indexed items.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return i.size
}

// Lookup returns the item with the given canonical id.
func (i *Index) Lookup(id string) (Item, bool) {
	if i == nil {
		return Item{}, false
	}
	it, ok := i.byID[id]
	return it, ok
}

// Resolve finds an item by id first, then by normalized name or alias.
func (i *Index) Resolve(ref string) (Item, bool) {
	if i == nil || ref == "" {
		return Item{}, false
	}
	if it, ok := i.byID[ref]; ok {
		return it, true
	}
	if id, ok := i.byKey[utils.NormalizeKey(ref)]; ok {
		return i.byID[id], true
	}
	return Item{}, false
}

// Catalog holds the live index and swaps it wholesale on refresh, so
// readers never observe a partially built index.
type Catalog struct {
	v atomic.Pointer[Index]
}

// NewCatalog returns a catalog seeded with an empty index.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.v.Store(BuildIndex(nil))
	return c
}

// Swap rebuilds the index from items and publishes it atomically.
func (c *Catalog) Swap(items []Item) {
	c.v.Store(BuildIndex(items))
}

// Index returns the current index snapshot.
func (c *Catalog) Index() *Index {
	return c.v.Load()
}
