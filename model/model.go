package model

// Product is the catalog snapshot the upstream returns for a barcode lookup.
type Product struct {
	Barcode  string  `json:"barcode"`
	Name     string  `json:"product_name"`
	Price    float64 `json:"price"`
	Cost     float64 `json:"cost"`
	ImageURL string  `json:"image_url"`
}

// CartLine is one aggregated, quantity-bearing entry for a distinct barcode
// awaiting stock deduction. At most one line exists per barcode.
type CartLine struct {
	ID       string  `json:"id"`
	Barcode  string  `json:"barcode"`
	Name     string  `json:"product_name"`
	Cost     float64 `json:"cost"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
	Quantity int     `json:"quantity"`
}

// PaymentItem is one staged daily expense awaiting confirmation against the
// backend. It lives only in the local queue until confirmed or deleted.
type PaymentItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}
