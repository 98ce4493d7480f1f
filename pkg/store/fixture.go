package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// FixtureGame is one game in a JSON fixture file.
type FixtureGame struct {
	GameID          string                    `json:"game_id"`
	GameDate        time.Time                 `json:"game_date"`
	StartTime       time.Time                 `json:"start_time"`
	DurationSeconds int                       `json:"duration_seconds"`
	IsComplete      bool                      `json:"is_complete"`
	HomeWon         *bool                     `json:"home_won,omitempty"`
	Probabilities   []sim.ProbabilitySnapshot `json:"probabilities"`
	Quotes          []sim.MarketQuote         `json:"quotes"`
}

// Fixture is the top-level JSON fixture document.
type Fixture struct {
	Games []FixtureGame `json:"games"`
}

// LoadFixture reads a JSON fixture file into an in-memory store. Useful for
// running backtests against exported data without a database.
func LoadFixture(path string) (*Memory, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	mem := NewMemory()
	ids := make([]string, 0, len(fixture.Games))
	for _, fg := range fixture.Games {
		if fg.GameID == "" {
			return nil, nil, fmt.Errorf("fixture %s: game with empty game_id", path)
		}
		mem.AddGame(&Game{
			ID:        fg.GameID,
			Date:      fg.GameDate,
			StartTime: fg.StartTime,
			Duration:  time.Duration(fg.DurationSeconds) * time.Second,
			Outcome:   Outcome{IsComplete: fg.IsComplete, HomeWon: fg.HomeWon},
		}, fg.Probabilities, fg.Quotes)
		ids = append(ids, fg.GameID)
	}

	return mem, ids, nil
}
