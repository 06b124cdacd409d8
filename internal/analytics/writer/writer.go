// Package writer streams decoded analytics rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
)

// Config names the destination tables and how hard to push on transient failures.
// Zero values fall back to one row per insert, three attempts and a 250ms
// backoff capped at 2s.
type Config struct {
	DecisionsTable   string
	ShiftEventsTable string
	BatchSize        int
	MaxAttempts      int
	Backoff          time.Duration
	MaxBackoff       time.Duration
}

func (c Config) withDefaults() Config {
	c.DecisionsTable = strings.TrimSpace(c.DecisionsTable)
	c.ShiftEventsTable = strings.TrimSpace(c.ShiftEventsTable)
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 250 * time.Millisecond
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = max(2*time.Second, c.Backoff)
	}
	return c
}

// Inserter is the slice of the BigQuery client the writer needs.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// batch buffers rows for one table until it holds size of them.
type batch[T any] struct {
	table string
	size  int

	mu   sync.Mutex
	rows []T
}

// add queues row and hands back the whole buffer once it is full.
func (b *batch[T]) add(row T) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, row)
	if len(b.rows) < b.size {
		return nil
	}
	return b.takeLocked()
}

func (b *batch[T]) take() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.takeLocked()
}

func (b *batch[T]) takeLocked() []T {
	out := b.rows
	b.rows = nil
	return out
}

// putBack returns rows that failed to insert ahead of anything queued since.
func (b *batch[T]) putBack(rows []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(rows, b.rows...)
}

func (b *batch[T]) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Writer buffers decision and shift rows and inserts them with retries. It is
// safe for the concurrent callbacks of a Pub/Sub receiver.
type Writer struct {
	inserter    Inserter
	cfg         Config
	decisions   *batch[types.DecisionRow]
	shiftEvents *batch[types.ShiftEventRow]
}

// New validates cfg and returns a writer over inserter.
func New(inserter Inserter, cfg Config) (*Writer, error) {
	if inserter == nil {
		return nil, errors.New("bigquery inserter required")
	}
	cfg = cfg.withDefaults()
	switch {
	case cfg.DecisionsTable == "":
		return nil, errors.New("decisions table is required")
	case cfg.ShiftEventsTable == "":
		return nil, errors.New("shift events table is required")
	}
	return &Writer{
		inserter:    inserter,
		cfg:         cfg,
		decisions:   &batch[types.DecisionRow]{table: cfg.DecisionsTable, size: cfg.BatchSize},
		shiftEvents: &batch[types.ShiftEventRow]{table: cfg.ShiftEventsTable, size: cfg.BatchSize},
	}, nil
}

// InsertDecision queues row and inserts the batch once it is full.
func (w *Writer) InsertDecision(ctx context.Context, row types.DecisionRow) error {
	return send(ctx, w, w.decisions, w.decisions.add(row))
}

// InsertShiftEvent queues row and inserts the batch once it is full.
func (w *Writer) InsertShiftEvent(ctx context.Context, row types.ShiftEventRow) error {
	return send(ctx, w, w.shiftEvents, w.shiftEvents.add(row))
}

// Flush inserts whatever is buffered, decisions first.
func (w *Writer) Flush(ctx context.Context) error {
	if err := send(ctx, w, w.decisions, w.decisions.take()); err != nil {
		return err
	}
	return send(ctx, w, w.shiftEvents, w.shiftEvents.take())
}

// Pending reports how many rows are buffered across both tables.
func (w *Writer) Pending() int {
	return w.decisions.pending() + w.shiftEvents.pending()
}

// send inserts rows into b's table. Rows that fail go back into b so a later
// flush retries them.
func send[T any](ctx context.Context, w *Writer, b *batch[T], rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([]any, len(rows))
	for i := range rows {
		values[i] = &rows[i]
	}
	if err := w.insert(ctx, b.table, values); err != nil {
		b.putBack(rows)
		return err
	}
	return nil
}

func (w *Writer) insert(ctx context.Context, table string, rows []any) error {
	backoff := retry.WithMaxRetries(uint64(w.cfg.MaxAttempts-1),
		retry.WithCappedDuration(w.cfg.MaxBackoff, retry.NewExponential(w.cfg.Backoff)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := w.inserter.InsertRows(ctx, table, rows)
		if transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), table, err)
	}
}

// transient reports whether err is worth another attempt. Multi-row errors
// only qualify when every part does, since retrying re-sends the whole batch.
func transient(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return all(multi, transient)
	}
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		return all(rowErrs, func(e cbigquery.RowInsertionError) bool { return transient(e.Errors) })
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func all[T any](items []T, ok func(T) bool) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !ok(item) {
			return false
		}
	}
	return true
}

// EncodeJSON turns payload into a BigQuery JSON column value. Empty input
// becomes NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
