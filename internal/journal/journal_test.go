package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ml-algo-trader/internal/model"
)

func testRecord(i int) model.TradeRecord {
	amount := 0.49
	price := 2000.0 + float64(i)
	return model.TradeRecord{
		Timestamp:  time.Date(2024, 3, 1, 10+i, 0, 0, 0, time.UTC),
		Action:     model.SideBuy,
		Amount:     amount,
		Price:      price,
		TotalValue: amount * price,
	}
}

func TestAppendAndReadAllInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_log.csv")
	j, err := OpenCSV(path)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, j.Append(testRecord(i)))
	}

	records, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		want := testRecord(i)
		assert.True(t, rec.Timestamp.Equal(want.Timestamp), "record %d timestamp", i)
		assert.Equal(t, want.Action, rec.Action)
		assert.InDelta(t, want.Amount, rec.Amount, 1e-12)
		assert.InDelta(t, want.Price, rec.Price, 1e-12)
		assert.InDelta(t, want.TotalValue, rec.TotalValue, 1e-12)
	}
}

func TestHeaderWrittenExactlyOnceAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_log.csv")

	j1, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, j1.Append(testRecord(0)))

	j2, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, j2.Append(testRecord(1)))

	j3, err := OpenCSV(path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "Timestamp,Action,Amount,Price,Total_Value"))

	records, err := j3.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFreshJournalIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_log.csv")
	j, err := OpenCSV(path)
	require.NoError(t, err)

	records, err := j.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenCSV(filepath.Join(dir, "trade_log.csv"))
	require.NoError(t, err)

	// Replace the file with a directory so the append cannot succeed.
	require.NoError(t, os.Remove(filepath.Join(dir, "trade_log.csv")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "trade_log.csv"), 0o755))

	err = j.Append(testRecord(0))
	assert.ErrorIs(t, err, model.ErrJournalAppend)
}
