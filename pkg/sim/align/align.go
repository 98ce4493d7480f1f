// Package align merges the independently-timestamped ESPN and Kalshi streams
// into one ordered sequence of comparable snapshots.
package align

import (
	"time"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// MaxTimeDiff is the widest gap allowed between an ESPN snapshot and the
// Kalshi quote it is paired with.
const MaxTimeDiff = 60 * time.Second

// Stats reports how many points were dropped and why. Filtering is a
// data-quality signal, not a silent discard.
type Stats struct {
	Aligned            int `json:"aligned"`
	FilteredByTimeDiff int `json:"filtered_by_time_diff"`
	FilteredByWindow   int `json:"filtered_by_window"`
}

// Align pairs each ESPN snapshot with the closest market quote using a
// forward-only cursor; both inputs are already time-sorted so the scan is a
// single pass. Points with no quote within MaxTimeDiff, or falling inside the
// excluded prefix/suffix of game time, are dropped and counted.
//
// Zero snapshots is an error (there is nothing to simulate); zero quotes is
// not (a game can simply have no market) and yields an empty sequence.
func Align(
	snapshots []sim.ProbabilitySnapshot,
	quotes []sim.MarketQuote,
	gameStart time.Time,
	gameDuration time.Duration,
	excludeFirst, excludeLast time.Duration,
) ([]sim.AlignedPoint, Stats, error) {
	var stats Stats

	if len(snapshots) == 0 {
		return nil, stats, sim.ErrNoEspnData
	}
	if gameDuration <= 0 {
		return nil, stats, sim.ErrInvalidGameWindow
	}
	if len(quotes) == 0 {
		return []sim.AlignedPoint{}, stats, nil
	}

	windowStart := gameStart.Add(excludeFirst)
	windowEnd := gameStart.Add(gameDuration).Add(-excludeLast)

	points := make([]sim.AlignedPoint, 0, len(snapshots))
	cursor := 0

	for _, snap := range snapshots {
		// Advance the cursor while the next quote is at least as close.
		for cursor+1 < len(quotes) &&
			absDiff(quotes[cursor+1].Timestamp, snap.Timestamp) <= absDiff(quotes[cursor].Timestamp, snap.Timestamp) {
			cursor++
		}

		quote := quotes[cursor]
		if absDiff(quote.Timestamp, snap.Timestamp) > MaxTimeDiff {
			stats.FilteredByTimeDiff++
			continue
		}
		if snap.Timestamp.Before(windowStart) || snap.Timestamp.After(windowEnd) {
			stats.FilteredByWindow++
			continue
		}

		points = append(points, sim.AlignedPoint{
			Timestamp:   snap.Timestamp,
			EspnProb:    snap.HomeWinProb,
			KalshiPrice: quote.MidPrice,
			KalshiBid:   quote.Bid,
			KalshiAsk:   quote.Ask,
		})
	}

	stats.Aligned = len(points)
	return points, stats, nil
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
