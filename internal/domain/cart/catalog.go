package cart

import "context"

// Catalog resolves persistent products by id. Implementations return
// shared.ErrNotFound for an unknown id.
type Catalog interface {
	FindProduct(ctx context.Context, id string) (*Product, error)
}
