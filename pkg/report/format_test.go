package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtedge/nba-divergence/pkg/sim"
	"github.com/courtedge/nba-divergence/pkg/sim/service"
)

func sampleReport() *service.Report {
	return &service.Report{
		RequestID:      "req-1",
		Status:         "complete",
		Params:         sim.Params{EntryThreshold: 0.05, ExitThreshold: 0.02, BetSize: 20},
		Duration:       1500 * time.Millisecond,
		GamesRequested: 2,
		GamesSimulated: 2,
		TotalProfit:    decimal.NewFromFloat(37.50),
		NumTrades:      5,
		WinRate:        0.6,
		ROI:            0.375,
		MaxWin:         decimal.NewFromFloat(19.22),
		MaxLoss:        decimal.NewFromInt(-20),
		MedianProfit:   8.5,
		Long:           service.PositionBreakdown{Count: 3, Profit: decimal.NewFromFloat(25)},
		Short:          service.PositionBreakdown{Count: 2, Profit: decimal.NewFromFloat(12.5)},
		Games: []service.GameSummary{
			{GameID: "401584669", GameDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), NumTrades: 3, TotalProfit: decimal.NewFromFloat(22.5), WinRate: 2.0 / 3.0},
			{GameID: "401584712", GameDate: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), NumTrades: 2, TotalProfit: decimal.NewFromFloat(15), WinRate: 0.5},
		},
	}
}

func TestWriteTextIncludesHeadlineNumbers(t *testing.T) {
	var sb strings.Builder
	WriteText(&sb, sampleReport())
	out := sb.String()

	assert.Contains(t, out, "req-1")
	assert.Contains(t, out, "$37.50")
	assert.Contains(t, out, "37.50%")
	assert.Contains(t, out, "60.0%")
	assert.Contains(t, out, "$-20.00")
}

func TestWriteGamesListsEachGame(t *testing.T) {
	var sb strings.Builder
	WriteGames(&sb, sampleReport())
	out := sb.String()

	assert.Contains(t, out, "401584669")
	assert.Contains(t, out, "401584712")
	assert.Contains(t, out, "2024-03-15")
}

func TestExportJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Export(sampleReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got service.Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, 5, got.NumTrades)
	assert.True(t, got.TotalProfit.Equal(decimal.NewFromFloat(37.50)))
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, Export(sampleReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "total_profit,37.5")
	assert.Contains(t, out, "401584669")
}

func TestExportDefaultsToJSON(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Export(sampleReport(), base))

	_, err := os.Stat(base + ".json")
	assert.NoError(t, err)
}
