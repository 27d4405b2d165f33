package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStockLevel_Available(t *testing.T) {
	level := StockLevel{Quantity: 25, Reserved: 10, LowStockThreshold: 10}

	assert.Equal(t, int32(15), level.Available())
	assert.False(t, level.IsLow())

	level.Reserved = 15
	assert.True(t, level.IsLow())
}
