package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
	"github.com/iliyamo/theater-qr-provisioning/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, password_hash, role, theater_id, is_active, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u       model.User
		theater sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &theater, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if theater.Valid {
		id := uint64(theater.Int64)
		u.TheaterID = &id
	}
	return u, err
}

// Create inserts an operator account and returns its ID.  theaterID is
// zero for admins.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, theaterID uint64, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var theater sql.NullInt64
	if theaterID != 0 {
		theater = sql.NullInt64{Int64: int64(theaterID), Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, theater_id) VALUES (?,?,?,?)",
		utils.NormalizeEmail(email), hash, role, theater)
	if err != nil {
		return 0, mapDuplicate(err, ErrEmailExists)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", utils.NormalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}
