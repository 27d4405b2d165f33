package domain

import "time"

type StockLevel struct {
	Sku               string    `db:"sku"`
	Quantity          int32     `db:"quantity"`
	Reserved          int32     `db:"reserved"`
	LowStockThreshold int32     `db:"low_stock_threshold"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (s StockLevel) Available() int32 {
	return s.Quantity - s.Reserved
}

func (s StockLevel) IsLow() bool {
	return s.Available() <= s.LowStockThreshold
}

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationReleased  ReservationStatus = "released"
	ReservationConfirmed ReservationStatus = "confirmed"
)

// Reservation is one ledger line keyed by (Token, Sku). A released line is kept so that a reserve
// arriving after its own release is refused instead of holding stock nobody will free.
type Reservation struct {
	Token     string            `db:"token"`
	Sku       string            `db:"sku"`
	Quantity  int32             `db:"quantity"`
	Status    ReservationStatus `db:"status"`
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}
