package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// SnapshotVersion is the current snapshot encoding version
const SnapshotVersion = 1

var (
	// ErrSnapshotNotFound is returned when the slot holds no snapshot
	ErrSnapshotNotFound = errors.New("cart snapshot not found")
	// ErrSnapshotCorrupt is returned when a stored snapshot cannot be decoded
	ErrSnapshotCorrupt = errors.New("cart snapshot is corrupt")
	// ErrSnapshotStale is returned when the slot was written since the
	// snapshot being saved was loaded
	ErrSnapshotStale = errors.New("cart snapshot is stale")
)

// Snapshot is the serialized form of a ShoppingCart. Revision counts the
// saves of the slot it was loaded from.
type Snapshot struct {
	Version  int            `json:"version"`
	Revision int64          `json:"revision"`
	Lines    []SnapshotLine `json:"lines"`
}

// SnapshotLine is the serialized form of a CartLine
type SnapshotLine struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	Brand     string    `json:"brand,omitempty"`
	Condition Condition `json:"condition"`
	ImageRef  string    `json:"image_ref,omitempty"`
}

// SnapshotRepository is the durable key/value slot holding cart snapshots.
// Several instances may share a slot, so saves are compare-and-set on the
// revision.
type SnapshotRepository interface {
	// Load returns ErrSnapshotNotFound for an empty slot and an error
	// wrapping ErrSnapshotCorrupt for an undecodable one
	Load(ctx context.Context, key string) (Snapshot, error)
	// Save stores snapshot as revision snapshot.Revision+1 when the slot
	// still holds snapshot.Revision, and returns an error wrapping
	// ErrSnapshotStale otherwise. An empty or corrupt slot accepts any
	// revision.
	Save(ctx context.Context, key string, snapshot Snapshot) error
}

// Snapshot captures the current cart contents
func (c *ShoppingCart) Snapshot() Snapshot {
	lines := make([]SnapshotLine, len(c.lines))
	for i, l := range c.lines {
		lines[i] = SnapshotLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.Amount().String(),
			Quantity:  l.Quantity,
			Brand:     l.Brand,
			Condition: l.Condition,
			ImageRef:  l.ImageRef,
		}
	}
	return Snapshot{Version: SnapshotVersion, Lines: lines}
}

// Restore rebuilds a cart from a snapshot, rejecting one that breaks the
// cart invariants
func Restore(s Snapshot) (*ShoppingCart, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, s.Version)
	}
	c := NewShoppingCart()
	seen := make(map[string]struct{}, len(s.Lines))
	for _, sl := range s.Lines {
		if sl.ProductID == "" {
			return nil, fmt.Errorf("%w: line without product id", ErrSnapshotCorrupt)
		}
		if _, dup := seen[sl.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %s", ErrSnapshotCorrupt, sl.ProductID)
		}
		if sl.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity %d for product %s", ErrSnapshotCorrupt, sl.Quantity, sl.ProductID)
		}
		price, err := decimal.NewFromString(sl.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: price for product %s: %v", ErrSnapshotCorrupt, sl.ProductID, err)
		}
		cond := sl.Condition
		if !cond.IsValid() {
			cond = ConditionNew
		}
		seen[sl.ProductID] = struct{}{}
		c.lines = append(c.lines, CartLine{
			ProductID: sl.ProductID,
			Name:      sl.Name,
			UnitPrice: valueobject.VNDFromDecimal(price),
			Quantity:  sl.Quantity,
			Brand:     sl.Brand,
			Condition: cond,
			ImageRef:  sl.ImageRef,
		})
	}
	return c, nil
}

// EncodeSnapshot serializes a snapshot to JSON
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses JSON produced by EncodeSnapshot.
// Any parse failure is reported as ErrSnapshotCorrupt.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if _, err := Restore(s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
