// Package connstore persists the monitored connection directory. Only
// endpoint identity and display metadata ever reach a store; credentials
// stay in the driver configuration.
package connstore

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

const savedConnectionsTable = "saved_connections"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	// PostgresStore keeps the connection directory in a single table. Saves
	// replace the stored set wholesale inside one transaction, mirroring the
	// wholesale refresh semantics of the supervisor itself.
	PostgresStore struct {
		db *sqlx.DB
	}

	savedConnectionRow struct {
		Endpoint           string    `db:"endpoint"`
		DisplayName        string    `db:"display_name"`
		RefreshIntervalMS  int64     `db:"refresh_interval_ms"`
		AutoRefreshEnabled bool      `db:"auto_refresh_enabled"`
		SavedAt            time.Time `db:"saved_at"`
	}
)

var _ ports.ConnectionStore = (*PostgresStore)(nil)

func NewPostgresStore(cfg config.StorageConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, cfg.SSLMode,
		int(cfg.ConnectTimeout.Seconds()),
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) SaveConnections(ctx context.Context, connections []domain.SavedConnection) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteQuery, deleteArgs, err := psql.Delete(savedConnectionsTable).ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("clearing saved connections: %w", err)
	}

	now := time.Now().UTC()
	for _, conn := range connections {
		insertQuery, insertArgs, err := psql.Insert(savedConnectionsTable).
			Columns("endpoint", "display_name", "refresh_interval_ms", "auto_refresh_enabled", "saved_at").
			Values(conn.Endpoint, conn.DisplayName, conn.RefreshInterval.Milliseconds(), conn.AutoRefreshEnabled, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("saving connection %s: %w", conn.Endpoint, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) LoadConnections(ctx context.Context) ([]domain.SavedConnection, error) {
	query, args, err := psql.Select("endpoint", "display_name", "refresh_interval_ms", "auto_refresh_enabled", "saved_at").
		From(savedConnectionsTable).
		OrderBy("endpoint ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var rows []savedConnectionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("loading saved connections: %w", err)
	}

	connections := make([]domain.SavedConnection, 0, len(rows))
	for _, row := range rows {
		connections = append(connections, domain.SavedConnection{
			Endpoint:           row.Endpoint,
			DisplayName:        row.DisplayName,
			RefreshInterval:    time.Duration(row.RefreshIntervalMS) * time.Millisecond,
			AutoRefreshEnabled: row.AutoRefreshEnabled,
		})
	}

	return connections, nil
}

func (s *PostgresStore) ClearSavedConnections(ctx context.Context) error {
	query, args, err := psql.Delete(savedConnectionsTable).ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing saved connections: %w", err)
	}

	return nil
}
