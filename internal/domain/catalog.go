package domain

import "github.com/google/uuid"

// CatalogProduct is the read-only snapshot the order service prices lines
// from. Backed by the catalog collaborator; never mutated here.
type CatalogProduct struct {
	ID      uuid.UUID `db:"id"`
	Name    string    `db:"name"`
	Price   int64     `db:"price"`
	IsAddOn bool      `db:"is_addon"`
	Active  bool      `db:"active"`
}
