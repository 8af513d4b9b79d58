package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	PageFetches      atomic.Int64
	PageFetchErrors  atomic.Int64
	ScopeResolutions atomic.Int64
	ScopeNotFound    atomic.Int64
	ScopeFailures    atomic.Int64
	ShortLinks       atomic.Int64
	RedirectChecks   atomic.Int64
	MirrorRequests   atomic.Int64
	LiveLookups      atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses, errs := CacheStats()
	return map[string]int64{
		"page_fetches":      metrics.PageFetches.Load(),
		"page_fetch_errors": metrics.PageFetchErrors.Load(),
		"scope_resolutions": metrics.ScopeResolutions.Load(),
		"scope_not_found":   metrics.ScopeNotFound.Load(),
		"scope_failures":    metrics.ScopeFailures.Load(),
		"short_links":       metrics.ShortLinks.Load(),
		"redirect_checks":   metrics.RedirectChecks.Load(),
		"mirror_requests":   metrics.MirrorRequests.Load(),
		"live_lookups":      metrics.LiveLookups.Load(),
		"cache_hits":        hits,
		"cache_misses":      misses,
		"cache_errors":      errs,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"page_fetches", "page_fetch_errors",
		"scope_resolutions", "scope_not_found", "scope_failures",
		"short_links", "redirect_checks", "mirror_requests", "live_lookups",
		"cache_hits", "cache_misses", "cache_errors",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the tiktok sub-package.
func IncrScopeResolutions() { metrics.ScopeResolutions.Add(1) }
func IncrScopeNotFound()    { metrics.ScopeNotFound.Add(1) }
func IncrScopeFailures()    { metrics.ScopeFailures.Add(1) }
func IncrShortLinks()       { metrics.ShortLinks.Add(1) }
func IncrRedirectChecks()   { metrics.RedirectChecks.Add(1) }
func IncrMirrorRequests()   { metrics.MirrorRequests.Add(1) }
func IncrLiveLookups()      { metrics.LiveLookups.Add(1) }
