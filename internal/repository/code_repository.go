package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/theater-qr-provisioning/internal/config"
	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

// CodeRepo persists provisioned codes and their seat sub-records.  A code
// and its seats are always written in one transaction.
type CodeRepo struct {
	db *sql.DB
}

func NewCodeRepo(db *sql.DB) *CodeRepo {
	return &CodeRepo{db: db}
}

const codeColumns = `id, theater_id, qr_type, qr_name, seat_class, logo_type, logo_url, orientation,
	qr_code_url, image_key, scan_count, created_by, created_at, updated_at`

const seatColumns = "id, code_id, seat, qr_code_url, image_key, is_active, scan_count, created_at, updated_at"

func scanCode(row interface{ Scan(...any) error }) (*model.ProvisionedCode, error) {
	var (
		c   model.ProvisionedCode
		url sql.NullString
	)
	if err := row.Scan(&c.ID, &c.TheaterID, &c.QRType, &c.QRName, &c.SeatClass, &c.LogoType, &c.LogoURL,
		&c.Orientation, &url, &c.ImageKey, &c.ScanCount, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if url.Valid {
		s := url.String
		c.QRCodeURL = &s
	}
	return &c, nil
}

func scanSeat(row interface{ Scan(...any) error }) (*model.CodeSeat, error) {
	var s model.CodeSeat
	if err := row.Scan(&s.ID, &s.CodeID, &s.Seat, &s.QRCodeURL, &s.ImageKey, &s.IsActive,
		&s.ScanCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByTheater returns every code of the theater with its seats, newest
// first.  Seats keep their insertion order, which is canonical seat order.
func (r *CodeRepo) ListByTheater(ctx context.Context, theaterID uint64) ([]model.ProvisionedCode, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+codeColumns+" FROM provisioned_codes WHERE theater_id = ? ORDER BY created_at DESC, id DESC",
		theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []model.ProvisionedCode{}
	byID := make(map[uint64]int)
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = len(codes)
		codes = append(codes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return codes, nil
	}

	seatRows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.code_id, s.seat, s.qr_code_url, s.image_key, s.is_active, s.scan_count, s.created_at, s.updated_at
		 FROM provisioned_code_seats s
		 JOIN provisioned_codes c ON c.id = s.code_id
		 WHERE c.theater_id = ?
		 ORDER BY s.code_id, s.id`, theaterID)
	if err != nil {
		return nil, err
	}
	defer seatRows.Close()
	for seatRows.Next() {
		s, err := scanSeat(seatRows)
		if err != nil {
			return nil, err
		}
		if i, ok := byID[s.CodeID]; ok {
			codes[i].Seats = append(codes[i].Seats, *s)
		}
	}
	return codes, seatRows.Err()
}

// ProvisionedNames lists the QR names that already have a code.
func (r *CodeRepo) ProvisionedNames(ctx context.Context, theaterID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT qr_name FROM provisioned_codes WHERE theater_id = ?", theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetByID loads one code with its seats.  A code of another theater is
// reported as ErrCodeNotFound.
func (r *CodeRepo) GetByID(ctx context.Context, theaterID, codeID uint64) (*model.ProvisionedCode, error) {
	c, err := scanCode(r.db.QueryRowContext(ctx,
		"SELECT "+codeColumns+" FROM provisioned_codes WHERE id = ? AND theater_id = ?", codeID, theaterID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+seatColumns+" FROM provisioned_code_seats WHERE code_id = ? ORDER BY id", codeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		c.Seats = append(c.Seats, *s)
	}
	return c, rows.Err()
}

// Create inserts the code and all of its seats in one transaction.  An
// existing code under the same (theater, name) yields ErrDuplicateName and
// nothing is written.  On success c is replaced by the stored row; if that
// re-read fails, c keeps the written values with its new ID.
func (r *CodeRepo) Create(ctx context.Context, c *model.ProvisionedCode) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO provisioned_codes
		 (theater_id, qr_type, qr_name, seat_class, logo_type, logo_url, orientation, qr_code_url, image_key, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TheaterID, c.QRType, c.QRName, c.SeatClass, c.LogoType, c.LogoURL, c.Orientation,
		nullString(c.QRCodeURL), c.ImageKey, c.CreatedBy)
	if err != nil {
		return mapDuplicate(err, ErrDuplicateName)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err = insertSeatsTx(ctx, tx, uint64(id), c.Seats); err != nil {
		return mapDuplicate(err, ErrDuplicateSeat)
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	// committed: from here on the code exists and Create must not fail
	c.ID = uint64(id)
	for i := range c.Seats {
		c.Seats[i].CodeID = c.ID
	}
	stored, rerr := r.GetByID(context.WithoutCancel(ctx), c.TheaterID, c.ID)
	if rerr != nil {
		config.LogError(config.GetLogger(), "repository", "CodeRepo.Create", "re-read committed code", c.ID, rerr)
		return nil
	}
	*c = *stored
	return nil
}

// insertSeatsTx writes seats with one multi-row INSERT.
func insertSeatsTx(ctx context.Context, tx *sql.Tx, codeID uint64, seats []model.CodeSeat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO provisioned_code_seats (code_id, seat, qr_code_url, image_key, is_active) VALUES ")
	args := make([]interface{}, 0, len(seats)*5)
	for i, s := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, codeID, s.Seat, s.QRCodeURL, s.ImageKey, s.IsActive)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}

// AddSeat appends one seat to a code.
func (r *CodeRepo) AddSeat(ctx context.Context, codeID uint64, s *model.CodeSeat) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO provisioned_code_seats (code_id, seat, qr_code_url, image_key, is_active) VALUES (?, ?, ?, ?, ?)",
		codeID, s.Seat, s.QRCodeURL, s.ImageKey, s.IsActive)
	if err != nil {
		return mapDuplicate(err, ErrDuplicateSeat)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.getSeat(ctx, codeID, s.Seat)
	if err != nil {
		return err
	}
	stored.ID = uint64(id)
	*s = *stored
	return nil
}

// UpdateSeat overwrites the seat currently named current with next.
func (r *CodeRepo) UpdateSeat(ctx context.Context, codeID uint64, current string, next model.CodeSeat) (*model.CodeSeat, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE provisioned_code_seats SET seat = ?, qr_code_url = ?, image_key = ?, is_active = ?
		 WHERE code_id = ? AND seat = ?`,
		next.Seat, next.QRCodeURL, next.ImageKey, next.IsActive, codeID, current)
	if err != nil {
		return nil, mapDuplicate(err, ErrDuplicateSeat)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// 0 also covers an update that changed nothing
		if _, err := r.getSeat(ctx, codeID, current); err != nil {
			return nil, err
		}
	}
	return r.getSeat(ctx, codeID, next.Seat)
}

// DeleteSeat removes one seat of a code.
func (r *CodeRepo) DeleteSeat(ctx context.Context, codeID uint64, seat string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM provisioned_code_seats WHERE code_id = ? AND seat = ?", codeID, seat)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSeatNotFound
	}
	return nil
}

func (r *CodeRepo) getSeat(ctx context.Context, codeID uint64, seat string) (*model.CodeSeat, error) {
	s, err := scanSeat(r.db.QueryRowContext(ctx,
		"SELECT "+seatColumns+" FROM provisioned_code_seats WHERE code_id = ? AND seat = ?", codeID, seat))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	return s, err
}

// Delete removes a code and its seats.  The QR name becomes free again.
func (r *CodeRepo) Delete(ctx context.Context, theaterID, codeID uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var owner uint64
	if err = tx.QueryRowContext(ctx,
		"SELECT theater_id FROM provisioned_codes WHERE id = ? FOR UPDATE", codeID).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrCodeNotFound
		}
		return err
	}
	if owner != theaterID {
		err = ErrCodeNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM provisioned_code_seats WHERE code_id = ?", codeID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM provisioned_codes WHERE id = ?", codeID)
	return err
}

// IncrementScan counts one scan.  An empty seat addresses a single code.
// A seat scan is only counted while the seat is active; otherwise the
// error tells which part of the address did not match.
func (r *CodeRepo) IncrementScan(ctx context.Context, theaterID uint64, qrName, seat string) error {
	if seat == "" {
		res, err := r.db.ExecContext(ctx,
			`UPDATE provisioned_codes SET scan_count = scan_count + 1
			 WHERE theater_id = ? AND qr_name = ? AND qr_type = ?`,
			theaterID, qrName, model.QRTypeSingle)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrCodeNotFound
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE provisioned_code_seats s
		 JOIN provisioned_codes c ON c.id = s.code_id
		 SET s.scan_count = s.scan_count + 1
		 WHERE c.theater_id = ? AND c.qr_name = ? AND s.seat = ? AND s.is_active = 1`,
		theaterID, qrName, seat)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var (
		codeID uint64
		active sql.NullBool
	)
	err = r.db.QueryRowContext(ctx,
		`SELECT c.id, s.is_active
		 FROM provisioned_codes c
		 LEFT JOIN provisioned_code_seats s ON s.code_id = c.id AND s.seat = ?
		 WHERE c.theater_id = ? AND c.qr_name = ?`,
		seat, theaterID, qrName).Scan(&codeID, &active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrCodeNotFound
	case err != nil:
		return err
	case !active.Valid:
		return ErrSeatNotFound
	default:
		return ErrSeatInactive
	}
}
