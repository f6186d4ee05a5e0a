// Package pgstore provides a PostgreSQL implementation of alert.Store and
// alert.ProfileSource.
package pgstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/haul/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/haul/internal/alert/pgstore")

//go:embed migrations/*.sql
var migrations embed.FS

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists alerts in PostgreSQL. Its Queries methods run directly on
// the pool, one implicit transaction per statement; use InTx to group them.
type Store struct {
	queries
	pool *pgxpool.Pool
}

// New returns a Store backed by pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

// Migrate applies all pending schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// InTx runs fn inside a database transaction. It commits when fn returns nil
// and rolls back on error or panic.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q alert.Queries) error) (err error) {
	ctx, span := tracer.Start(ctx, "pgstore.InTx", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx, queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const collectorColumns = `id, user_id, lat, lng, accepted_types, verified`

// GetCollector reads a collector profile by ID.
func (s *Store) GetCollector(ctx context.Context, id string) (*alert.CollectorProfile, error) {
	ctx, span := startSpan(ctx, "pgstore.GetCollector", "SELECT")
	defer span.End()

	p, err := scanCollector(s.pool.QueryRow(ctx,
		`SELECT `+collectorColumns+` FROM collector_profiles WHERE id = $1`, id))
	if err != nil {
		return nil, fail(span, mapError(err, "collector", id))
	}
	return p, nil
}

// GetCollectorByUser reads the collector profile owned by userID.
func (s *Store) GetCollectorByUser(ctx context.Context, userID string) (*alert.CollectorProfile, error) {
	ctx, span := startSpan(ctx, "pgstore.GetCollectorByUser", "SELECT")
	defer span.End()

	p, err := scanCollector(s.pool.QueryRow(ctx,
		`SELECT `+collectorColumns+` FROM collector_profiles WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fail(span, mapError(err, "collector for user", userID))
	}
	return p, nil
}

// UpsertCollector writes a collector profile. Profiles are owned by the
// identity component; this exists for seeding and tests.
func (s *Store) UpsertCollector(ctx context.Context, p *alert.CollectorProfile) error {
	ctx, span := startSpan(ctx, "pgstore.UpsertCollector", "UPSERT")
	defer span.End()

	types := make([]string, len(p.AcceptedTypes))
	for i, t := range p.AcceptedTypes {
		types[i] = string(t)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO collector_profiles (id, user_id, lat, lng, accepted_types, verified)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			user_id        = EXCLUDED.user_id,
			lat            = EXCLUDED.lat,
			lng            = EXCLUDED.lng,
			accepted_types = EXCLUDED.accepted_types,
			verified       = EXCLUDED.verified`,
		p.ID, p.UserID, p.Location.Lat, p.Location.Lng, types, p.Verified,
	)
	if err != nil {
		return fail(span, mapError(err, "collector", p.ID))
	}
	return nil
}

func scanCollector(row pgx.Row) (*alert.CollectorProfile, error) {
	var (
		p     alert.CollectorProfile
		types []string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Location.Lat, &p.Location.Lng, &types, &p.Verified); err != nil {
		return nil, err
	}
	p.AcceptedTypes = make([]alert.WasteType, len(types))
	for i, t := range types {
		p.AcceptedTypes[i] = alert.WasteType(t)
	}
	return &p, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
