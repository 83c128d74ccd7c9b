// Package journal keeps the durable, append-only record of executed trades.
package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"ml-algo-trader/internal/model"
)

// Journal records executed trades and plays them back in append order.
type Journal interface {
	Append(rec model.TradeRecord) error
	ReadAll() ([]model.TradeRecord, error)
}

var header = []string{"Timestamp", "Action", "Amount", "Price", "Total_Value"}

// CSVJournal appends one CSV row per trade. The header row is written exactly
// once for the lifetime of the file, however many times the journal is
// reopened. Each append opens, flushes and closes the file, so a crashed
// process never leaves a torn row buffered in memory.
type CSVJournal struct {
	mu   sync.Mutex
	path string
}

// OpenCSV opens or creates the journal file at path, writing the header if
// the file is new or empty.
func OpenCSV(path string) (*CSVJournal, error) {
	j := &CSVJournal{path: path}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.ensureHeader(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) ensureHeader() error {
	info, err := os.Stat(j.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: stat %s: %v", model.ErrJournalAppend, j.path, err)
	}
	return j.writeRow(header)
}

func (j *CSVJournal) writeRow(row []string) error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", model.ErrJournalAppend, j.path, err)
	}
	w := csv.NewWriter(f)
	writeErr := w.Write(row)
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("%w: %v", model.ErrJournalAppend, writeErr)
	}
	return nil
}

// Append writes one trade row. A failed append is reported, never swallowed;
// previously written rows are untouched because the file only ever grows.
func (j *CSVJournal) Append(rec model.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.ensureHeader(); err != nil {
		return err
	}
	return j.writeRow([]string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		string(rec.Action),
		strconv.FormatFloat(rec.Amount, 'f', -1, 64),
		strconv.FormatFloat(rec.Price, 'f', -1, 64),
		strconv.FormatFloat(rec.TotalValue, 'f', -1, 64),
	})
}

// ReadAll returns every journaled trade in insertion order.
func (j *CSVJournal) ReadAll() ([]model.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal %s: %w", j.path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read journal %s: %w", j.path, err)
	}

	records := make([]model.TradeRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("journal row %d has %d fields, want %d", i, len(row), len(header))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("journal row %d: bad timestamp %q", i, row[0])
		}
		amount, err1 := strconv.ParseFloat(row[2], 64)
		price, err2 := strconv.ParseFloat(row[3], 64)
		total, err3 := strconv.ParseFloat(row[4], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("journal row %d: bad numeric field", i)
		}
		records = append(records, model.TradeRecord{
			Timestamp:  ts,
			Action:     model.Side(row[1]),
			Amount:     amount,
			Price:      price,
			TotalValue: total,
		})
	}
	return records, nil
}
