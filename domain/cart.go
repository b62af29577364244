package domain

// CartLine is one book in the cart. Price is in whole rupees.
type CartLine struct {
	ID       string `json:"id" bson:"id"`
	Title    string `json:"title" bson:"title"`
	Author   string `json:"author" bson:"author"`
	Price    int64  `json:"price" bson:"price"`
	Quantity int    `json:"quantity" bson:"quantity"`
	Image    string `json:"image" bson:"image"`
}

type CartState struct {
	Items []CartLine `json:"items" bson:"items"`
	Total int64      `json:"total" bson:"total"`
}

func (c CartState) IsEmpty() bool {
	return len(c.Items) == 0
}

// ComputeTotal returns the sum of price*quantity over all lines.
func (c CartState) ComputeTotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// ItemCount is the number of books across all lines.
func (c CartState) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// IDs returns the line ids in cart order.
func (c CartState) IDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}
