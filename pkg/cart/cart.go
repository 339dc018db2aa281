package cart

import "sync"

// Line is a single cart entry. Lines are keyed by (ItemID, Variation); no
// two lines share the same key.
type Line struct {
	ItemID    string  `json:"itemId"`
	Variation string  `json:"variation,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Image     string  `json:"image,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

type lineKey struct {
	itemID    string
	variation string
}

// Cart is an ordered collection of lines. All mutation goes through the
// single-writer engine API; quantity <= 0 removes a line.
type Cart struct {
	mu    sync.RWMutex
	order []lineKey
	lines map[lineKey]*Line
}

func New() *Cart {
	return &Cart{lines: make(map[lineKey]*Line)}
}

// Lines returns a copy of the cart in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Line, 0, len(c.order))
	for _, k := range c.order {
		if l, ok := c.lines[k]; ok {
			out = append(out, *l)
		}
	}
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

// Total returns the cart subtotal.
func (c *Cart) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total float64
	for _, l := range c.lines {
		total += float64(l.Quantity) * l.UnitPrice
	}
	return total
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	c.lines = make(map[lineKey]*Line)
}

// Replace swaps the whole cart content (snapshot restore).
func (c *Cart) Replace(lines []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	c.lines = make(map[lineKey]*Line, len(lines))
	for i := range lines {
		l := lines[i]
		if l.Quantity <= 0 {
			continue
		}
		k := lineKey{itemID: l.ItemID, variation: l.Variation}
		if _, exists := c.lines[k]; !exists {
			c.order = append(c.order, k)
		}
		c.lines[k] = &l
	}
}

// get returns the live line for a key, if present.
func (c *Cart) get(k lineKey) (*Line, bool) {
	l, ok := c.lines[k]
	return l, ok
}

// put inserts or overwrites a line, preserving insertion order for
// existing keys.
func (c *Cart) put(l Line) {
	k := lineKey{itemID: l.ItemID, variation: l.Variation}
	if _, exists := c.lines[k]; !exists {
		c.order = append(c.order, k)
	}
	c.lines[k] = &l
}

// remove deletes a line. Removing a nonexistent line is a no-op.
func (c *Cart) remove(k lineKey) {
	if _, ok := c.lines[k]; !ok {
		return
	}
	delete(c.lines, k)
	for i, existing := range c.order {
		if existing == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
