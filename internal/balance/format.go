package balance

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals between the smallest denomination
// and the display unit.
const EtherDecimals = 18

// ErrorMarker is rendered instead of an amount when the fetch failed.
const ErrorMarker = "Error"

// FormatUnits renders amount, given in the smallest denomination, as a
// decimal string with at least one fractional digit.
func FormatUnits(amount *big.Int, decimals int32) string {
	s := decimal.NewFromBigInt(amount, -decimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatEther renders amount with EtherDecimals decimals.
func FormatEther(amount *big.Int) string {
	return FormatUnits(amount, EtherDecimals)
}

// Render renders v the way the balance display shows it: empty while
// absent or loading, ErrorMarker on failure, glyph and amount otherwise.
func Render(v Value, glyph string) string {
	switch v.State {
	case Failed:
		return ErrorMarker
	case Loaded:
		return glyph + FormatEther(v.Amount)
	}
	return ""
}
