package domain

import "time"

type Product struct {
	ID          int64     `db:"id"`
	Sku         string    `db:"sku"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Price       int64     `db:"price"`
	Category    string    `db:"category"`
	ImageURL    string    `db:"image_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ProductDetails joins a catalog entry with its stock. Stock fields are zero when the ledger could not be read.
type ProductDetails struct {
	Product
	TotalQuantity     int32
	AvailableQuantity int32
	InStock           bool
	LowStock          bool
}
