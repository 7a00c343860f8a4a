// Package quotecache decides, per calendar day and per time-of-day, whether
// previously fetched FII quotes are still trustworthy.
package quotecache

import "time"

// B3 session window in local São Paulo time, half-open [open, close).
const (
	sessionOpenHour  = 10
	sessionCloseHour = 18
)

// saoPauloLocation is the America/Sao_Paulo timezone. Brazil scrapped DST in
// 2019 so this is effectively fixed UTC-3, but the IANA zone keeps us correct
// for historical timestamps.
var saoPauloLocation = mustLoadLocation("America/Sao_Paulo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fallback to fixed BRT if tzdata is unavailable (e.g., minimal container)
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// IsTradingHours reports whether t falls inside the weekly B3 trading
// window: Monday–Friday, local hour within [sessionOpenHour, sessionCloseHour).
// Pure predicate, re-evaluated on every call.
func IsTradingHours(t time.Time) bool {
	local := t.In(saoPauloLocation)
	weekday := local.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}
	hour := local.Hour()
	return hour >= sessionOpenHour && hour < sessionCloseHour
}
