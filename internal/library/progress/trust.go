// Copyright (c) 2026 MangaTrack. All rights reserved.

package progress

import (
	"math"
	"time"
)

// # Trust Score

// Violation types. There is deliberately no violation for large chapter
// jumps: binge reads are legitimate.
const (
	ViolationSpeedRead         = "speed_read"
	ViolationBulkSpeedRead     = "bulk_speed_read"
	ViolationPatternRepetition = "pattern_repetition"
)

// ViolationDelta is the trust-score penalty per violation type.
var ViolationDelta = map[string]float64{
	ViolationSpeedRead:         -0.05,
	ViolationBulkSpeedRead:     -0.04,
	ViolationPatternRepetition: -0.08,
}

const (
	// TrustFloor and TrustCeiling bound the score.
	TrustFloor   = 0.5
	TrustCeiling = 1.0

	// TrustDecayPerDay is the daily recovery toward the ceiling.
	TrustDecayPerDay = 0.02

	// ViolationCooldown suppresses repeat penalties of the same type.
	ViolationCooldown = 60 * time.Second

	// minReadSeconds is the floor of the plausible-read threshold when
	// page counts are unknown.
	minReadSeconds = 30
	// secondsPerPage scales the threshold with chapter length.
	secondsPerPage = 3

	// bulkWindow and bulkThreshold escalate repeated speed violations
	// into the grouped bulk type.
	bulkWindow    = 5 * time.Minute
	bulkThreshold = 3

	// patternStdevFloor flags metronomic reading: when the last five
	// inter-read intervals vary by less than this, a human is unlikely.
	patternStdevFloor = 2 * time.Second

	// patternSampleSize is the number of read timestamps needed for the
	// five-interval window.
	patternSampleSize = 6
)

// SuspiciousRead reports whether a read completed implausibly fast.
// The threshold is three seconds per page with a 30-second floor; an
// unknown page count degrades to the floor alone.
func SuspiciousRead(readTime time.Duration, pages int) bool {
	threshold := time.Duration(max(minReadSeconds, pages*secondsPerPage)) * time.Second
	return readTime < threshold
}

// ClampTrust bounds a trust score into [TrustFloor, TrustCeiling].
func ClampTrust(score float64) float64 {
	return math.Min(TrustCeiling, math.Max(TrustFloor, score))
}

// EffectiveXP is the leaderboard value: lifetime XP attenuated by trust.
// Actual XP is never reduced.
func EffectiveXP(xp int64, trustScore float64) int64 {
	return int64(float64(ClampXP(xp)) * ClampTrust(trustScore))
}

// IntervalStdev computes the standard deviation of the inter-read
// intervals over stamps (newest first or oldest first, order does not
// matter beyond adjacency). It reports ok=false when fewer than
// [patternSampleSize] stamps are available.
func IntervalStdev(stamps []time.Time) (time.Duration, bool) {
	if len(stamps) < patternSampleSize {
		return 0, false
	}
	stamps = stamps[:patternSampleSize]

	intervals := make([]float64, 0, len(stamps)-1)
	for i := 1; i < len(stamps); i++ {
		delta := stamps[i-1].Sub(stamps[i]).Seconds()
		intervals = append(intervals, math.Abs(delta))
	}

	var mean float64
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))

	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))

	return time.Duration(math.Sqrt(variance) * float64(time.Second)), true
}

// MetronomicPattern reports whether the interval spread is below the
// pattern floor.
func MetronomicPattern(stamps []time.Time) bool {
	stdev, ok := IntervalStdev(stamps)
	return ok && stdev < patternStdevFloor
}
