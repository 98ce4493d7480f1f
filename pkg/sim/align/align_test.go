package align

import (
	"errors"
	"testing"
	"time"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

var gameStart = time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC)

const gameDuration = 150 * time.Minute

func snap(offset time.Duration, prob float64) sim.ProbabilitySnapshot {
	return sim.ProbabilitySnapshot{Timestamp: gameStart.Add(offset), HomeWinProb: prob}
}

func quote(offset time.Duration, mid float64) sim.MarketQuote {
	return sim.MarketQuote{Timestamp: gameStart.Add(offset), MidPrice: mid}
}

func TestAlignNearestQuote(t *testing.T) {
	snaps := []sim.ProbabilitySnapshot{
		snap(10*time.Minute, 0.55),
		snap(20*time.Minute, 0.60),
		snap(30*time.Minute, 0.65),
	}
	quotes := []sim.MarketQuote{
		quote(10*time.Minute+5*time.Second, 0.50),
		quote(19*time.Minute+40*time.Second, 0.52),
		quote(29*time.Minute+30*time.Second, 0.58),
		quote(31*time.Minute, 0.61),
	}

	points, stats, err := Align(snaps, quotes, gameStart, gameDuration, 0, 0)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 aligned points, got %d", len(points))
	}

	// Each snapshot should pair with the closest quote, never a farther one.
	wantPrices := []float64{0.50, 0.52, 0.58}
	for i, p := range points {
		if p.KalshiPrice != wantPrices[i] {
			t.Errorf("point %d: kalshi price = %v, want %v", i, p.KalshiPrice, wantPrices[i])
		}
	}
	if stats.Aligned != 3 || stats.FilteredByTimeDiff != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestAlignDropsStaleQuotes(t *testing.T) {
	snaps := []sim.ProbabilitySnapshot{
		snap(10*time.Minute, 0.55),
		snap(60*time.Minute, 0.70),
	}
	// Only one quote, close to the first snapshot but 50 minutes from the second.
	quotes := []sim.MarketQuote{quote(10*time.Minute, 0.50)}

	points, stats, err := Align(snaps, quotes, gameStart, gameDuration, 0, 0)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 aligned point, got %d", len(points))
	}
	if stats.FilteredByTimeDiff != 1 {
		t.Errorf("FilteredByTimeDiff = %d, want 1", stats.FilteredByTimeDiff)
	}
}

func TestAlignExclusionWindows(t *testing.T) {
	snaps := []sim.ProbabilitySnapshot{
		snap(2*time.Minute, 0.52),              // inside excluded prefix
		snap(75*time.Minute, 0.61),             // kept
		snap(gameDuration-time.Minute, 0.95),   // inside excluded suffix
	}
	quotes := []sim.MarketQuote{
		quote(2*time.Minute, 0.50),
		quote(75*time.Minute, 0.58),
		quote(gameDuration-time.Minute, 0.97),
	}

	points, stats, err := Align(snaps, quotes, gameStart, gameDuration, 5*time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 aligned point, got %d", len(points))
	}
	if stats.FilteredByWindow != 2 {
		t.Errorf("FilteredByWindow = %d, want 2", stats.FilteredByWindow)
	}
	if points[0].EspnProb != 0.61 {
		t.Errorf("kept wrong point: %+v", points[0])
	}
}

func TestAlignNoEspnData(t *testing.T) {
	_, _, err := Align(nil, []sim.MarketQuote{quote(0, 0.5)}, gameStart, gameDuration, 0, 0)
	if !errors.Is(err, sim.ErrNoEspnData) {
		t.Errorf("expected ErrNoEspnData, got %v", err)
	}
}

func TestAlignNoMarketData(t *testing.T) {
	points, _, err := Align([]sim.ProbabilitySnapshot{snap(0, 0.5)}, nil, gameStart, gameDuration, 0, 0)
	if err != nil {
		t.Fatalf("expected no error for empty market, got %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected empty sequence, got %d points", len(points))
	}
}

func TestAlignInvalidGameWindow(t *testing.T) {
	snaps := []sim.ProbabilitySnapshot{snap(0, 0.5)}
	quotes := []sim.MarketQuote{quote(0, 0.5)}

	for _, d := range []time.Duration{0, -time.Hour} {
		_, _, err := Align(snaps, quotes, gameStart, d, 0, 0)
		if !errors.Is(err, sim.ErrInvalidGameWindow) {
			t.Errorf("duration %v: expected ErrInvalidGameWindow, got %v", d, err)
		}
	}
}

func TestAlignDeterministic(t *testing.T) {
	snaps := make([]sim.ProbabilitySnapshot, 0, 40)
	quotes := make([]sim.MarketQuote, 0, 40)
	for i := 0; i < 40; i++ {
		snaps = append(snaps, snap(time.Duration(i)*3*time.Minute, 0.5+float64(i)*0.01))
		quotes = append(quotes, quote(time.Duration(i)*3*time.Minute+20*time.Second, 0.5+float64(i)*0.009))
	}

	first, _, err := Align(snaps, quotes, gameStart, gameDuration, 0, 0)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	second, _, err := Align(snaps, quotes, gameStart, gameDuration, 0, 0)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("non-deterministic length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("point %d differs between runs", i)
		}
	}

	for i := 1; i < len(first); i++ {
		if !first[i].Timestamp.After(first[i-1].Timestamp) {
			t.Errorf("output not strictly ordered at %d", i)
		}
	}
}
