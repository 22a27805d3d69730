package market

import (
	"strings"
	"time"
)

// Equity session bounds in exchange-local time
var (
	equityOpenHour   = 9
	equityOpenMinute = 30
	equityCloseHour  = 16
)

// IsCryptoSymbol reports whether a symbol is a crypto pair (slash separator)
func IsCryptoSymbol(symbol string) bool {
	return strings.Contains(symbol, "/")
}

// IsMarketOpen reports whether the market for the symbol is open at t.
// Crypto trades around the clock. Equities trade 09:30-16:00 in loc,
// Monday through Friday.
func IsMarketOpen(symbol string, t time.Time, loc *time.Location) bool {
	if IsCryptoSymbol(symbol) {
		return true
	}

	local := t.In(loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), equityOpenHour, equityOpenMinute, 0, 0, loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), equityCloseHour, 0, 0, 0, loc)

	return !local.Before(open) && local.Before(close)
}

// NextOpen returns the next market open at or after t for the symbol.
// For crypto the market is always open, so t is returned unchanged.
func NextOpen(symbol string, t time.Time, loc *time.Location) time.Time {
	if IsCryptoSymbol(symbol) {
		return t
	}

	local := t.In(loc)
	for {
		open := time.Date(local.Year(), local.Month(), local.Day(), equityOpenHour, equityOpenMinute, 0, 0, loc)
		weekday := local.Weekday()
		if weekday != time.Saturday && weekday != time.Sunday && local.Before(open) {
			return open
		}
		if weekday != time.Saturday && weekday != time.Sunday && IsMarketOpen(symbol, local, loc) {
			return local
		}
		// Move to the start of the next day
		local = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).Add(24 * time.Hour)
	}
}
