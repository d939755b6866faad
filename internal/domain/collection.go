package domain

// Kind identifies which user collection a store holds.
type Kind string

const (
	KindCart     Kind = "cart"
	KindWishlist Kind = "wishlist"
)

func (k Kind) String() string {
	return string(k)
}

// LineItem is a product placed in the cart or the wishlist. Identity is ID.
// Quantity is meaningful for cart items only.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity,omitempty"`
	Image    string  `json:"image,omitempty"`
}

// Collection is a rendered view of a store: the items plus their derived
// aggregates.
type Collection struct {
	Kind      Kind       `json:"kind"`
	Items     []LineItem `json:"items"`
	ItemCount int        `json:"item_count"`
	Total     float64    `json:"total"`
}

// NewCollection builds a collection over items and computes its aggregates.
func NewCollection(kind Kind, items []LineItem) Collection {
	c := Collection{Kind: kind, Items: items}
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	c.Recompute()
	return c
}

// Recompute derives ItemCount and Total from Items. For a cart ItemCount is
// the sum of quantities; for a wishlist it is the number of entries and
// Total is always zero.
func (c *Collection) Recompute() {
	c.ItemCount = 0
	c.Total = 0
	for _, item := range c.Items {
		if c.Kind == KindWishlist {
			c.ItemCount++
			continue
		}
		c.ItemCount += item.Quantity
		c.Total += item.Price * float64(item.Quantity)
	}
}

// SyncStatus is the transient state of the last remote sync of a store.
type SyncStatus struct {
	InProgress bool   `json:"in_progress"`
	LastError  string `json:"last_error,omitempty"`
}
