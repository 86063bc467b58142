package delivery

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Driver PostgreSQL
	"github.com/twh32/my-fix-project/sdk/domain"
	"github.com/twh32/my-fix-project/sdk/utils"
)

// PostgresConfig configuración del sink PostgreSQL.
type PostgresConfig struct {
	DSN          string
	DialAttempts int
	// EnsureSchema crea schema y tabla si no existen
	EnsureSchema bool
}

const createOrdersTable = `
	CREATE SCHEMA IF NOT EXISTS fixgate;
	CREATE TABLE IF NOT EXISTS fixgate.orders (
		order_id            TEXT        NOT NULL,
		processed_timestamp TEXT        NOT NULL,
		symbol              TEXT        NOT NULL,
		quantity            INTEGER     NOT NULL,
		price               DOUBLE PRECISION NOT NULL,
		transact_time       TEXT,
		business_unit       TEXT        NOT NULL,
		trader_id           TEXT        NOT NULL,
		risk_category       TEXT        NOT NULL,
		payload             JSONB       NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (order_id, processed_timestamp)
	)
`

// PostgresSink escribe cada orden en fixgate.orders.
//
// El INSERT es idempotente por (order_id, processed_timestamp): un reintento
// del outbox sobre una orden ya escrita no duplica la fila.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink abre la conexión y espera a que la base responda.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, domain.NewError(domain.ErrInvalidConfig, "postgres sink requires a dsn")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "postgres open", err)
	}

	if err := retryConnect(ctx, "postgres ping", cfg.DialAttempts, func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, domain.WrapError(domain.ErrSinkUnavailable, "postgres connect", err)
	}

	sink := NewPostgresSinkWithDB(db)
	if cfg.EnsureSchema {
		if err := sink.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return sink, nil
}

// NewPostgresSinkWithDB crea el sink sobre un *sql.DB existente.
func NewPostgresSinkWithDB(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema crea schema y tabla.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createOrdersTable); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}
	return nil
}

// Name implementa Named.
func (s *PostgresSink) Name() string { return "postgres" }

// Deliver implementa Sink.
func (s *PostgresSink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	payload, err := utils.MarshalJSON(order)
	if err != nil {
		return domain.WrapError(domain.ErrDeliveryFailed, "encode canonical order", err)
	}

	var transactTime sql.NullString
	if order.TransactTime != nil {
		transactTime = sql.NullString{String: *order.TransactTime, Valid: true}
	}

	query := `
		INSERT INTO fixgate.orders (
			order_id, processed_timestamp, symbol, quantity, price,
			transact_time, business_unit, trader_id, risk_category, payload
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (order_id, processed_timestamp) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		order.OrderID,
		order.ProcessedTimestamp,
		order.Symbol,
		order.Quantity,
		order.Price,
		transactTime,
		order.BusinessUnit,
		order.TraderID,
		order.RiskCategory,
		string(payload),
	)
	if err != nil {
		return domain.WrapError(domain.ErrSinkUnavailable, "failed to insert order", err)
	}
	return nil
}

// Close cierra el pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
