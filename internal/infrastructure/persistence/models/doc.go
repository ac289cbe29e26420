// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Domain types carry no GORM tags; each model converts with ToDomain and
// FromDomain, and repositories only ever read and write models.
//
// Tables:
// - orders, order_items: placed storefront orders (order.go)
// - profiles: customer contact details saved by the identity provider (profile.go)
// - products: the persistent catalog (catalog.go)
package models
