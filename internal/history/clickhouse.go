package history

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseSink sends events to ClickHouse using the official Go client.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

func NewClickHouseSink(addr, table string) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	s := &ClickHouseSink{conn: conn, table: table}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *ClickHouseSink) ensureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		occurred_at DateTime64(3, 'UTC'),
		event String,
		family String,
		phase String,
		message String,
		pid Int64
	) ENGINE = MergeTree() ORDER BY occurred_at`, s.table)
	if err := s.conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to create ClickHouse table: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Send(ctx context.Context, e Event) error {
	q := fmt.Sprintf(`INSERT INTO %s (occurred_at, event, family, phase, message, pid) VALUES (?, ?, ?, ?, ?, ?)`, s.table)
	err := s.conn.Exec(ctx, q,
		e.OccurredAt.UTC(),
		string(e.Type),
		e.Family,
		e.Phase,
		e.Message,
		int64(e.PID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
