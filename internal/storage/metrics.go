package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const metricsBuffer = 256

type metricEvent struct {
	name  string
	value sql.NullFloat64
	at    time.Time
}

// MetricsSink writes metric events asynchronously. Track never blocks;
// events are dropped when the buffer is full.
type MetricsSink struct {
	db      *DB
	events  chan metricEvent
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewMetricsSink starts the background writer. Call Close to flush.
func NewMetricsSink(db *DB) *MetricsSink {
	m := &MetricsSink{
		db:     db,
		events: make(chan metricEvent, metricsBuffer),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Track implements translation.MetricsSink. Only the first value is kept.
func (m *MetricsSink) Track(event string, value ...float64) {
	ev := metricEvent{name: event, at: time.Now()}
	if len(value) > 0 {
		ev.value = sql.NullFloat64{Float64: value[0], Valid: true}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.dropped.Add(1)
		return
	}
	select {
	case m.events <- ev:
	default:
		m.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (m *MetricsSink) Dropped() int64 {
	return m.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be written.
func (m *MetricsSink) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	m.mu.Unlock()
	<-m.done
}

func (m *MetricsSink) run() {
	defer close(m.done)
	for ev := range m.events {
		q := m.db.SQ.
			Insert("metrics").
			Columns("event", "value", "created_at").
			Values(ev.name, ev.value, ev.at.UnixMilli())
		if _, err := m.db.exec(context.Background(), q); err != nil {
			m.db.logger.Warn("failed to record metric", "event", ev.name, "error", err)
		}
	}
}

// Counts returns the number of recorded events per name.
func (m *MetricsSink) Counts(ctx context.Context) (map[string]int, error) {
	query, args, err := m.db.SQ.
		Select("event", "COUNT(*)").
		From("metrics").
		GroupBy("event").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := m.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan metrics: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}
