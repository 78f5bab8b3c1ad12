package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/storefront-identity/internal/database"
	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

const insertRefreshSQL = "INSERT INTO refresh_tokens (token_hash, user_id, issued_at, expires_at, device_info, client_ip, user_agent) VALUES (?,?,?,?,?,?,?)"

// TokenRepo persists refresh tokens.  Callers pass raw tokens; only their
// keyed hash reaches the database.
type TokenRepo struct {
	DB     *sql.DB
	Hasher utils.TokenHasher
	now    func() time.Time
}

func NewTokenRepo(db *sql.DB, hasher utils.TokenHasher) *TokenRepo {
	return &TokenRepo{DB: db, Hasher: hasher, now: func() time.Time { return time.Now().UTC() }}
}

// NextRefresh describes the successor token created by a rotation.
type NextRefresh struct {
	Raw       string
	ExpiresAt time.Time
	Meta      model.ClientMeta
}

// Store inserts a fresh active record for raw.
func (r *TokenRepo) Store(ctx context.Context, userID, raw string, expiresAt time.Time, meta model.ClientMeta) error {
	_, err := r.DB.ExecContext(ctx, insertRefreshSQL,
		r.Hasher.Hash(raw), userID, r.now(), expiresAt,
		nullString(meta.DeviceInfo), nullString(meta.ClientIP), nullString(meta.UserAgent))
	return err
}

// VerifyAndRotate exchanges raw for next in one transaction and returns the
// owning user id.  The old record is retired by a conditional UPDATE that
// only matches while it is still active, so of two concurrent calls with the
// same token exactly one sees a changed row; the other fails.
//
// On failure the error is ErrRefreshNotFound, ErrRefreshExpired,
// ErrRefreshRevoked or a *ReuseError.  For a *ReuseError the owning user id
// is returned as well.
func (r *TokenRepo) VerifyAndRotate(ctx context.Context, raw string, next NextRefresh) (string, error) {
	oldHash := r.Hasher.Hash(raw)
	newHash := r.Hasher.Hash(next.Raw)
	now := r.now()

	var userID string
	err := database.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx database.DBTX) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE refresh_tokens SET revoked_at=?, replaced_by_hash=? WHERE token_hash=? AND revoked_at IS NULL AND replaced_by_hash IS NULL AND expires_at > ?",
			now, newHash, oldHash, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			uid, cerr := classifyRefresh(ctx, tx, oldHash, now)
			userID = uid
			return cerr
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT user_id FROM refresh_tokens WHERE token_hash=?", oldHash).Scan(&userID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insertRefreshSQL,
			newHash, userID, now, next.ExpiresAt,
			nullString(next.Meta.DeviceInfo), nullString(next.Meta.ClientIP), nullString(next.Meta.UserAgent))
		return err
	})
	if err != nil {
		var reuse *ReuseError
		if errors.As(err, &reuse) {
			return reuse.UserID, err
		}
		return "", err
	}
	return userID, nil
}

// classifyRefresh explains why the conditional update matched nothing.
func classifyRefresh(ctx context.Context, tx database.DBTX, hash string, now time.Time) (string, error) {
	var (
		userID     string
		expiresAt  time.Time
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)
	err := tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at, replaced_by_hash FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		hash).Scan(&userID, &expiresAt, &revokedAt, &replacedBy)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrRefreshNotFound
	case err != nil:
		return "", err
	case replacedBy.Valid:
		return userID, &ReuseError{UserID: userID, RotatedAt: revokedAt.Time}
	case revokedAt.Valid:
		return "", ErrRefreshRevoked
	case !now.Before(expiresAt):
		return "", ErrRefreshExpired
	}
	// Active on re-read: the row changed between the update and this select.
	return "", ErrRefreshNotFound
}

// Revoke retires raw if it is still active.  It reports whether a record
// changed; revoking twice or revoking an expired token is not an error.
func (r *TokenRepo) Revoke(ctx context.Context, raw string) (bool, error) {
	now := r.now()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL AND expires_at > ?",
		now, r.Hasher.Hash(raw), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RevokeAll revokes every active token of the user and returns how many
// records changed.
func (r *TokenRepo) RevokeAll(ctx context.Context, userID string) (int64, error) {
	now := r.now()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL AND expires_at > ?",
		now, userID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpired deletes records that expired before cutoff.  Rotation
// chains older than that are no longer useful for reuse detection.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
