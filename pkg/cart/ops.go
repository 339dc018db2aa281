package cart

import (
	"fmt"

	"ai-waiter-service/internal/pkg/logger"
	"ai-waiter-service/pkg/menu"
)

// OpType identifies what kind of cart mutation the reply wants to make.
type OpType string

const (
	OpAdd    OpType = "add"
	OpSet    OpType = "set"
	OpDelta  OpType = "delta"
	OpInc    OpType = "inc"
	OpDec    OpType = "dec"
	OpRemove OpType = "remove"
)

// Op is a single structured cart instruction issued by the AI reply. The
// fields used depend on the Type. Quantity is a pointer so "set to 0" and
// "quantity absent" stay distinguishable.
type Op struct {
	Type      OpType `json:"type"`
	ItemID    string `json:"itemId,omitempty"`
	Name      string `json:"name,omitempty"`
	Variation string `json:"variation,omitempty"`
	Quantity  *int   `json:"quantity,omitempty"`
	Delta     *int   `json:"delta,omitempty"`
	// Price is only a hint; the catalog remains the source of truth for money.
	Price float64 `json:"price,omitempty"`
	Notes string  `json:"notes,omitempty"`
}

// Engine applies batches of voice-issued cart operations against a resolved
// catalog index. One malformed operation never aborts the rest of the batch.
type Engine struct {
	log logger.ILogger
}

func NewEngine(log logger.ILogger) *Engine {
	return &Engine{log: log}
}

// Apply mutates the cart: clear first when requested, then each operation in
// order. Unresolvable or malformed operations are skipped individually.
func (e *Engine) Apply(c *Cart, idx *menu.Index, clear bool, ops []Op) {
	if clear {
		c.Clear()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, op := range ops {
		if err := e.applyOne(c, idx, op); err != nil {
			e.log.Warn("CartEngine", "Skipping cart operation", map[string]interface{}{
				"index": i,
				"type":  string(op.Type),
				"error": err.Error(),
			})
		}
	}
}

func (e *Engine) applyOne(c *Cart, idx *menu.Index, op Op) error {
	line, ok := e.resolve(idx, op)
	if !ok {
		// Never fabricate a line for an unrecognized item when a catalog
		// is available.
		return fmt.Errorf("item %q not found in catalog", refOf(op))
	}
	k := lineKey{itemID: line.ItemID, variation: line.Variation}

	switch op.Type {
	case OpAdd:
		qty := 1
		if op.Quantity != nil && *op.Quantity > 1 {
			qty = *op.Quantity
		}
		if existing, found := c.get(k); found {
			existing.Quantity += qty
			return nil
		}
		line.Quantity = qty
		c.put(line)
		return nil

	case OpSet:
		if op.Quantity == nil {
			return fmt.Errorf("set without quantity")
		}
		if *op.Quantity <= 0 {
			c.remove(k)
			return nil
		}
		line.Quantity = *op.Quantity
		if existing, found := c.get(k); found {
			existing.Quantity = *op.Quantity
			return nil
		}
		c.put(line)
		return nil

	case OpDelta, OpInc, OpDec:
		change, err := signedChange(op)
		if err != nil {
			return err
		}
		existing, found := c.get(k)
		next := change
		if found {
			next = existing.Quantity + change
		}
		if next <= 0 {
			c.remove(k)
			return nil
		}
		if found {
			existing.Quantity = next
			return nil
		}
		line.Quantity = next
		c.put(line)
		return nil

	case OpRemove:
		c.remove(k)
		return nil

	default:
		return fmt.Errorf("unknown op type %q", op.Type)
	}
}

// resolve finds the target item: by id first, then by name/alias. With a
// non-empty catalog a failed resolution skips the operation; with an empty
// catalog the operation's own fields are trusted.
func (e *Engine) resolve(idx *menu.Index, op Op) (Line, bool) {
	ref := refOf(op)

	if idx.Len() > 0 {
		// ItemID is an exact catalog id; only the name falls back to the
		// fuzzy alias match.
		item, ok := idx.Lookup(op.ItemID)
		if !ok {
			item, ok = idx.Resolve(op.Name)
		}
		if !ok {
			return Line{}, false
		}
		return Line{
			ItemID:    item.ID,
			Variation: op.Variation,
			Name:      item.Name,
			UnitPrice: item.Price, // catalog price overrides any op hint
			Image:     item.Image,
			Notes:     op.Notes,
		}, true
	}

	if ref == "" {
		return Line{}, false
	}
	id := op.ItemID
	if id == "" {
		id = op.Name
	}
	name := op.Name
	if name == "" {
		name = op.ItemID
	}
	return Line{
		ItemID:    id,
		Variation: op.Variation,
		Name:      name,
		UnitPrice: op.Price,
		Notes:     op.Notes,
	}, true
}

// signedChange derives the quantity change for delta/inc/dec operations.
func signedChange(op Op) (int, error) {
	mag := 0
	switch {
	case op.Delta != nil:
		mag = *op.Delta
	case op.Quantity != nil:
		mag = *op.Quantity
	default:
		if op.Type == OpDelta {
			return 0, fmt.Errorf("delta without quantity")
		}
		mag = 1
	}

	switch op.Type {
	case OpInc:
		return abs(mag), nil
	case OpDec:
		return -abs(mag), nil
	default:
		return mag, nil
	}
}

func refOf(op Op) string {
	if op.ItemID != "" {
		return op.ItemID
	}
	return op.Name
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
