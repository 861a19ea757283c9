package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradeduel/internal/analysis/indicator"
	"tradeduel/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

func syntheticRaw(t *testing.T, n int) []market.RawCandle {
	t.Helper()
	src := market.NewSyntheticSource(market.SyntheticConfig{Count: n, Seed: 42, Now: fixedNow})
	raw, err := src.Fetch(context.Background())
	require.NoError(t, err)
	return raw
}

func TestBuild_EmptyInput(t *testing.T) {
	_, err := Build(nil, indicator.Settings{})
	require.Error(t, err)
	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 0, insufficient.Got)
}

func TestBuild_SingleCandle(t *testing.T) {
	raw := []market.RawCandle{{Timestamp: 1, Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}}
	out, err := Build(raw, indicator.Settings{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, 50.0, c.RSI)
	assert.Equal(t, 100.0, c.SMA20)
	assert.Equal(t, 100.0, c.SMA50)
	assert.Equal(t, 0.0, c.MACD)
	assert.Equal(t, 0.0, c.MACDSignal)
	assert.Equal(t, 0.0, c.MACDDiff)
}

func TestBuild_LengthAndNoLookAhead(t *testing.T) {
	raw := syntheticRaw(t, 120)
	full, err := Build(raw, indicator.Settings{})
	require.NoError(t, err)
	require.Len(t, full, len(raw))

	for _, n := range []int{1, 2, 14, 15, 26, 27, 35, 50, 51, 119} {
		prefix, err := Build(raw[:n], indicator.Settings{})
		require.NoError(t, err)
		assert.Equal(t, full[:n], prefix, "prefix n=%d", n)
	}
}

func TestBuild_RoundsOnlyOutput(t *testing.T) {
	raw := []market.RawCandle{
		{Timestamp: 1, Open: 10.004, High: 10.5, Low: 9.996, Close: 10.004, Volume: 1},
		{Timestamp: 2, Open: 10.004, High: 10.5, Low: 9.996, Close: 10.004, Volume: 1},
		{Timestamp: 3, Open: 10.004, High: 10.5, Low: 9.996, Close: 10.004, Volume: 1},
	}
	out, err := Build(raw, indicator.Settings{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, out[2].Close)
	assert.Equal(t, 10.0, out[2].Low)
	// the average of three 10.004 closes rounds the same way as a single one
	assert.Equal(t, 10.0, out[2].SMA20)
}

func TestBuilder_MACDStateGrowsPerCandle(t *testing.T) {
	raw := syntheticRaw(t, 40)
	b := NewBuilder(indicator.Settings{})
	for _, rc := range raw {
		b.Append(rc)
	}
	assert.Equal(t, 40, b.Len())
	state := b.MACDState()
	require.Len(t, state.History, 40)
	for i := 0; i < 25; i++ {
		assert.Equal(t, 0.0, state.History[i], "cold start entry %d", i)
	}
	assert.NotEqual(t, 0.0, state.History[39])
}

func TestLoad_ValidatesSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	bad := []market.RawCandle{{Timestamp: 1, Open: 1, High: 1, Low: 1, Close: -1}}
	data, _ := json.Marshal(bad)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := Load(context.Background(), market.NewFileSource(path), indicator.Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}

func TestLoad_FileRoundTrip(t *testing.T) {
	series, err := Load(context.Background(), market.NewSyntheticSource(market.SyntheticConfig{Count: 30, Seed: 7, Now: fixedNow}), indicator.Settings{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "series.json")
	data, err := json.Marshal(series)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	replayed, err := Load(context.Background(), market.NewFileSource(path), indicator.Settings{})
	require.NoError(t, err)
	require.Len(t, replayed, len(series))
	for i := range series {
		assert.Equal(t, series[i].Raw(), replayed[i].Raw())
	}

	sum, ok := Summarize(replayed)
	require.True(t, ok)
	assert.Equal(t, 30, sum.Count)
	assert.Equal(t, series[0].Close, sum.FirstClose)
}
