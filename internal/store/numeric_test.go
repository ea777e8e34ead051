package store

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "99.99", "499.97", "-5.99", "1234567.891234", "0.01"} {
		d := decimal.RequireFromString(s)
		got := NumericToDecimal(DecimalToNumeric(d))
		require.True(t, d.Equal(got), "round trip %s got %s", s, got)
	}
}

func TestNumericToDecimalNull(t *testing.T) {
	require.True(t, NumericToDecimal(pgtype.Numeric{}).IsZero())
	require.True(t, NumericToDecimal(pgtype.Numeric{Valid: true, NaN: true}).IsZero())
}
