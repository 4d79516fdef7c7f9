package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

// TheaterRepo reads and writes the theaters table.
type TheaterRepo struct {
	db *sql.DB
}

func NewTheaterRepo(db *sql.DB) *TheaterRepo {
	return &TheaterRepo{db: db}
}

const theaterColumns = "id, name, logo_url, is_active, created_at, updated_at"

func scanTheater(row interface{ Scan(...any) error }) (*model.Theater, error) {
	var (
		t    model.Theater
		logo sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &logo, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if logo.Valid && logo.String != "" {
		s := logo.String
		t.LogoURL = &s
	}
	return &t, nil
}

// Create inserts a theater and fills in its ID and timestamps.
func (r *TheaterRepo) Create(ctx context.Context, t *model.Theater) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO theaters (name, logo_url, is_active) VALUES (?, ?, ?)",
		t.Name, nullString(t.LogoURL), t.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = *got
	return nil
}

// GetByID returns ErrTheaterNotFound when no row matches.
func (r *TheaterRepo) GetByID(ctx context.Context, id uint64) (*model.Theater, error) {
	t, err := scanTheater(r.db.QueryRowContext(ctx,
		"SELECT "+theaterColumns+" FROM theaters WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTheaterNotFound
	}
	return t, err
}

// List returns all theaters ordered by name.
func (r *TheaterRepo) List(ctx context.Context) ([]model.Theater, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+theaterColumns+" FROM theaters ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Theater{}
	for rows.Next() {
		t, err := scanTheater(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Update changes name, logo and active flag.
func (r *TheaterRepo) Update(ctx context.Context, t *model.Theater) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE theaters SET name = ?, logo_url = ?, is_active = ? WHERE id = ?",
		t.Name, nullString(t.LogoURL), t.IsActive, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for an unchanged row too
		if _, err := r.GetByID(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
