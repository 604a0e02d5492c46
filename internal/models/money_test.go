package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeAmount(t *testing.T) {
	assert.Equal(t, "1500.00", SanitizeAmount("$1,500.00"))
	assert.Equal(t, "50", SanitizeAmount("50 dollars"))
	assert.Equal(t, "", SanitizeAmount("fifty"))
}

func TestParseAmount(t *testing.T) {
	t.Run("valid amounts", func(t *testing.T) {
		cents, err := ParseAmount("150.00")
		assert.NoError(t, err)
		assert.Equal(t, int64(15000), cents)

		cents, err = ParseAmount("0.5")
		assert.NoError(t, err)
		assert.Equal(t, int64(50), cents)

		cents, err = ParseAmount("3")
		assert.NoError(t, err)
		assert.Equal(t, int64(300), cents)
	})

	t.Run("rounds to the nearest cent", func(t *testing.T) {
		cents, err := ParseAmount("10.005")
		assert.NoError(t, err)
		assert.Equal(t, int64(1001), cents)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, in := range []string{"", "abc", "1.2.3", "NaN", "Inf"} {
			_, err := ParseAmount(in)
			assert.ErrorIs(t, err, ErrBadAmount, "input %q", in)
		}
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "150.00", FormatAmount(15000))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "-2.50", FormatAmount(-250))
	assert.Equal(t, "0.00", FormatAmount(0))
}

func TestTransactionRecordString(t *testing.T) {
	ts := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	deposit := TransactionRecord{Timestamp: ts, Kind: KindDeposit, Amount: 5000}
	assert.Equal(t, "[2024-01-02 15:04:05] --- Deposit --- $50.00", deposit.String())

	transfer := TransactionRecord{Timestamp: ts, Kind: KindTransfer, Amount: 2500, Counterparty: "bob"}
	assert.Equal(t, "[2024-01-02 15:04:05] --- Transfer --- $25.00 --- -> bob", transfer.String())
}
