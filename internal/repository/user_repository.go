package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/segmentio/ksuid"

	"github.com/iliyamo/storefront-identity/internal/model"
)

const userColumns = "id,email,name,password_hash,role,is_active,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUserID returns an opaque, time-sortable identifier.
func NewUserID() string { return "usr_" + ksuid.New().String() }

// Create inserts a user and returns the stored record.  The email is
// normalized before insert.
func (r *UserRepo) Create(ctx context.Context, email, name, passwordHash, role string) (model.User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	u := model.User{
		ID:           NewUserID(),
		Email:        model.NormalizeEmail(email),
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// isDuplicateKey reports MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
