// Package pgstore persists relying-party registrations in PostgreSQL.
// Registrations are long-lived and low-volume, so they live in the
// relational store rather than alongside the ephemeral sessions in Redis.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
	"github.com/dmitrymomot/authgate/pkg/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// ApplicationStore implements store.ApplicationStore on a pgx pool.
type ApplicationStore struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL-backed application store.
func New(pool *pgxpool.Pool) *ApplicationStore {
	return &ApplicationStore{pool: pool}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrationTable string, log *slog.Logger) error {
	return db.Migrate(ctx, pool, migrations, migrationTable, log)
}

// GetByID implements store.ApplicationStore.
func (s *ApplicationStore) GetByID(ctx context.Context, id string) (*session.Application, error) {
	return s.get(ctx, `SELECT id, secret, name, homepage, icon, redirect_urls FROM applications WHERE id = $1`, id)
}

// GetBySecret implements store.ApplicationStore.
func (s *ApplicationStore) GetBySecret(ctx context.Context, secret string) (*session.Application, error) {
	if secret == "" {
		return nil, store.ErrNotFound
	}
	return s.get(ctx, `SELECT id, secret, name, homepage, icon, redirect_urls FROM applications WHERE secret = $1`, secret)
}

// Create implements store.ApplicationStore.
func (s *ApplicationStore) Create(ctx context.Context, app *session.Application) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO applications (id, secret, name, homepage, icon, redirect_urls) VALUES ($1, $2, $3, $4, $5, $6)`,
		app.ID, app.Secret, app.Name, app.Homepage, app.Icon, app.RedirectURLs)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

// Update implements store.ApplicationStore.
func (s *ApplicationStore) Update(ctx context.Context, app *session.Application) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET secret = $2, name = $3, homepage = $4, icon = $5, redirect_urls = $6 WHERE id = $1`,
		app.ID, app.Secret, app.Name, app.Homepage, app.Icon, app.RedirectURLs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete implements store.ApplicationStore.
func (s *ApplicationStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List implements store.ApplicationStore.
func (s *ApplicationStore) List(ctx context.Context) ([]*session.Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, secret, name, homepage, icon, redirect_urls FROM applications ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*session.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *ApplicationStore) get(ctx context.Context, query, arg string) (*session.Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return app, nil
}

func scanApplication(row pgx.Row) (*session.Application, error) {
	app := &session.Application{}
	if err := row.Scan(&app.ID, &app.Secret, &app.Name, &app.Homepage, &app.Icon, &app.RedirectURLs); err != nil {
		return nil, err
	}
	return app, nil
}

var _ store.ApplicationStore = (*ApplicationStore)(nil)
