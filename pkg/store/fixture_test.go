package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	doc := []byte(`{
		"games": [
			{
				"game_id": "401584669",
				"game_date": "2024-03-15T00:00:00Z",
				"start_time": "2024-03-15T19:00:00Z",
				"duration_seconds": 9000,
				"is_complete": true,
				"home_won": true,
				"probabilities": [
					{"timestamp": "2024-03-15T19:10:00Z", "home_win_prob": 0.62}
				],
				"quotes": [
					{"timestamp": "2024-03-15T19:10:05Z", "mid_price": 0.55, "bid": 0.54, "ask": 0.56}
				]
			},
			{
				"game_id": "401584712",
				"start_time": "2024-03-16T19:00:00Z",
				"duration_seconds": 8700,
				"is_complete": false,
				"probabilities": [],
				"quotes": []
			}
		]
	}`)
	require.NoError(t, os.WriteFile(path, doc, 0644))

	mem, ids, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"401584669", "401584712"}, ids)

	ctx := context.Background()

	game, err := mem.GetGame(ctx, "401584669")
	require.NoError(t, err)
	assert.True(t, game.Outcome.IsComplete)
	require.NotNil(t, game.Outcome.HomeWon)
	assert.True(t, *game.Outcome.HomeWon)
	assert.Equal(t, 9000.0, game.Duration.Seconds())

	probs, err := mem.GetProbabilitySeries(ctx, "401584669")
	require.NoError(t, err)
	require.Len(t, probs, 1)
	assert.Equal(t, 0.62, probs[0].HomeWinProb)

	quotes, err := mem.GetMarketQuotes(ctx, "401584669")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.NotNil(t, quotes[0].Ask)
	assert.Equal(t, 0.56, *quotes[0].Ask)

	live, err := mem.GetGame(ctx, "401584712")
	require.NoError(t, err)
	assert.False(t, live.Outcome.IsComplete)
	assert.Nil(t, live.Outcome.HomeWon)

	_, err = mem.GetGame(ctx, "nope")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestLoadFixtureRejectsEmptyGameID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"games":[{"game_id":""}]}`), 0644))

	_, _, err := LoadFixture(path)
	assert.Error(t, err)
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
