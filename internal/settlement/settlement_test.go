package settlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuildInvoice(t *testing.T) {
	now := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)
	invoice := BuildInvoice(
		uuid.New(), uuid.New(),
		decimal.RequireFromString("150.00"),
		decimal.RequireFromString("0.25"),
		now, 30,
	)

	assert.True(t, invoice.VAT.Equal(decimal.RequireFromString("37.50")), invoice.VAT.String())
	assert.True(t, invoice.TotalDue.Equal(decimal.RequireFromString("187.50")), invoice.TotalDue.String())
	assert.Equal(t, time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC), invoice.DueDate)
}

func TestBuildInvoiceRoundsVAT(t *testing.T) {
	invoice := BuildInvoice(
		uuid.New(), uuid.New(),
		decimal.RequireFromString("33.33"),
		decimal.RequireFromString("0.25"),
		time.Now(), 30,
	)
	// 8.3325 rounds to 8.33
	assert.True(t, invoice.VAT.Equal(decimal.RequireFromString("8.33")), invoice.VAT.String())
}
