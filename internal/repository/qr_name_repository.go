package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

// QRNameRepo manages the registry of names a theater may provision.
type QRNameRepo struct {
	db *sql.DB
}

func NewQRNameRepo(db *sql.DB) *QRNameRepo {
	return &QRNameRepo{db: db}
}

const qrNameColumns = "id, theater_id, qr_name, seat_class, is_active, created_at, updated_at"

func scanQRName(row interface{ Scan(...any) error }) (*model.QRName, error) {
	var n model.QRName
	if err := row.Scan(&n.ID, &n.TheaterID, &n.QRName, &n.SeatClass, &n.IsActive, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByTheater returns every registered name of the theater, active or
// not, ordered by name.
func (r *QRNameRepo) ListByTheater(ctx context.Context, theaterID uint64) ([]model.QRName, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+qrNameColumns+" FROM qr_names WHERE theater_id = ? ORDER BY qr_name",
		theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.QRName{}
	for rows.Next() {
		n, err := scanQRName(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// GetByID returns ErrNameNotFound unless the name belongs to the theater.
func (r *QRNameRepo) GetByID(ctx context.Context, theaterID, id uint64) (*model.QRName, error) {
	n, err := scanQRName(r.db.QueryRowContext(ctx,
		"SELECT "+qrNameColumns+" FROM qr_names WHERE id = ? AND theater_id = ?", id, theaterID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNameNotFound
	}
	return n, err
}

// Create registers a name.  A name already registered for the theater
// yields ErrDuplicateName.
func (r *QRNameRepo) Create(ctx context.Context, n *model.QRName) error {
	n.QRName = strings.TrimSpace(n.QRName)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO qr_names (theater_id, qr_name, seat_class, is_active) VALUES (?, ?, ?, ?)",
		n.TheaterID, n.QRName, n.SeatClass, n.IsActive)
	if err != nil {
		return mapDuplicate(err, ErrDuplicateName)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, n.TheaterID, uint64(id))
	if err != nil {
		return err
	}
	*n = *got
	return nil
}

// Update changes the seat class and active flag.  The label itself is
// immutable once registered because provisioned codes refer to it.
func (r *QRNameRepo) Update(ctx context.Context, n *model.QRName) error {
	if _, err := r.GetByID(ctx, n.TheaterID, n.ID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE qr_names SET seat_class = ?, is_active = ? WHERE id = ? AND theater_id = ?",
		n.SeatClass, n.IsActive, n.ID, n.TheaterID)
	return err
}

// Delete removes a registry entry.  A name that still has a provisioned
// code yields ErrConflict.
func (r *QRNameRepo) Delete(ctx context.Context, theaterID, id uint64) error {
	n, err := r.GetByID(ctx, theaterID, id)
	if err != nil {
		return err
	}
	var used int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM provisioned_codes WHERE theater_id = ? AND qr_name = ?",
		theaterID, n.QRName).Scan(&used); err != nil {
		return err
	}
	if used > 0 {
		return ErrConflict
	}
	_, err = r.db.ExecContext(ctx, "DELETE FROM qr_names WHERE id = ? AND theater_id = ?", id, theaterID)
	return err
}
