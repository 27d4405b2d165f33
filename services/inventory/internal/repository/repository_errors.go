package repository

import "errors"

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrSkuTaken            = errors.New("sku already exists")
	ErrStockNotFound       = errors.New("inventory record not found")
	ErrReservationNotFound = errors.New("reservation not found")
)
