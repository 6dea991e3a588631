package catalog

// DefaultCategory is assigned when a product arrives without one.
const DefaultCategory = "Sin categoría"

// Product is a supplier catalog entry. PriceUsd is the supplier cost, not
// the sale price; products are never mutated in place, only re-added.
type Product struct {
	ID       int64   `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	PriceUsd float64 `json:"priceUsd" db:"price_usd"`
	Category string  `json:"category" db:"category"`
}
