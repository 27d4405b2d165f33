package repository

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNumberTaken     = errors.New("order number already taken")
	ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")
	ErrStatusConflict       = errors.New("order is not in an expected status")
)
