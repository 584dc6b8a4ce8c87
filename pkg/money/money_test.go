package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundsToTwoPlaces(t *testing.T) {
	m, err := Parse(" 10.005 ")
	require.NoError(t, err)
	assert.Equal(t, "10.01", m.String())

	_, err = Parse("ten")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestGSTArithmetic(t *testing.T) {
	base := FromInt(499)
	gst := base.MulRate(decimal.RequireFromString("0.18"))
	total := base.Add(gst)

	assert.Equal(t, "89.82", gst.String())
	assert.Equal(t, "588.82", total.String())
	assert.Equal(t, "411.18", FromInt(1000).Sub(total).String())
}

func TestCreditDebitRoundTripHasNoDrift(t *testing.T) {
	balance := MustParse("0.10")
	amount := MustParse("0.20")
	for i := 0; i < 1000; i++ {
		balance = balance.Add(amount).Sub(amount)
	}
	assert.True(t, balance.Equal(MustParse("0.10")))
}

func TestDivIntAndRoundUnits(t *testing.T) {
	assert.Equal(t, "124.92", FromInt(1499).DivInt(12).String())
	assert.Equal(t, "599.00", FromInt(599).DivInt(0).String())
	assert.Equal(t, "349.00", FromInt(499).MulRate(decimal.RequireFromString("0.7")).RoundUnits().String())
	assert.Equal(t, "674.00", FromInt(499).MulRate(decimal.RequireFromString("1.35")).RoundUnits().String())
}

func TestScanRoundsFloatDrift(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan(411.17999999999995))
	assert.Equal(t, "411.18", m.String())

	require.NoError(t, m.Scan([]byte("50.5")))
	assert.Equal(t, "50.50", m.String())

	require.NoError(t, m.Scan(int64(7)))
	assert.Equal(t, "7.00", m.String())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())
}

func TestJSON(t *testing.T) {
	var payload struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 12.5}`), &payload))
	assert.Equal(t, "12.50", payload.Amount.String())

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "7"}`), &payload))
	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"7.00"}`, string(out))
}
