package domain

import "time"

// Variant is a single purchasable SKU (one color/size combination).
// Price and merchandising metadata live with the catalog collaborator;
// this engine only owns the stock attached to it.
type Variant struct {
	ID        string
	SKU       string
	Name      string
	CreatedAt time.Time
}
