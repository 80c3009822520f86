package postgres

import (
	"context"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"quantstore/internal/infrastructure/storage/sqldoc"
)

// New connects through the pgx stdlib driver; partitions become JSONB tables.
func New(ctx context.Context, dsn string) (*sqldoc.Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqldoc.New(db, sqldoc.Postgres), nil
}
