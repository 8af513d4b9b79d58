// Package embed builds the JSON documents chat clients unfurl: activity
// statuses, accounts and the alternate (oEmbed-style) link document.
package embed

import (
	"strconv"
	"strings"
	"time"
)

// FormatNumber renders a counter the way the origin's own UI does:
// 999, 1.2K, 1M, 2.5B. Ten billion and above is rounded to whole billions.
func FormatNumber(n int64) string {
	switch {
	case n < 1000:
		return strconv.FormatInt(n, 10)
	case n < 1_000_000:
		return scaled(n, 1e3, 1) + "K"
	case n < 1_000_000_000:
		return scaled(n, 1e6, 1) + "M"
	case n < 10_000_000_000:
		return scaled(n, 1e9, 1) + "B"
	default:
		return scaled(n, 1e9, 0) + "B"
	}
}

func scaled(n int64, unit float64, prec int) string {
	return strings.TrimSuffix(strconv.FormatFloat(float64(n)/unit, 'f', prec, 64), ".0")
}

// isoTime formats a unix timestamp as an ISO-8601 UTC instant with millis.
func isoTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02T15:04:05.000Z")
}
