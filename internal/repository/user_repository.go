package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"centerequity/portal/internal/models"
	"centerequity/portal/internal/timeutil"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

const userColumns = `
	id, username, first_name, last_name, rank, subscribe,
	password_hash, reset_token, reset_expires,
	user_since, last_login_at, login_attempts
`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Rank,
		&user.Subscribe,
		&user.PasswordHash,
		&user.ResetToken,
		&user.ResetExpires,
		&user.UserSince,
		&user.LastLogin.At,
		&user.LastLogin.Attempts,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, username, first_name, last_name, rank, subscribe,
			password_hash, user_since, last_login_at, login_attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Rank,
		user.Subscribe,
		user.PasswordHash,
		user.UserSince,
		user.LastLogin.At,
		user.LastLogin.Attempts,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error) {
	const query = `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			username   = COALESCE($4, username),
			rank       = COALESCE($5, rank),
			subscribe  = COALESCE($6, subscribe)
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id,
		upd.FirstName,
		upd.LastName,
		upd.Username,
		(*string)(upd.Rank),
		(*string)(upd.Subscribe),
	))
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUsername
	}
	return user, err
}

// TouchLogin bumps the rolling daily login counter in a single UPDATE
// so concurrent logins from the same user cannot lose increments. The
// SQL mirrors models.NextLogin over the UTC day window of now.
func (r *UserRepository) TouchLogin(ctx context.Context, id string, now time.Time) (models.LastLogin, error) {
	dayStart, dayEnd := timeutil.DayWindow(now)

	const query = `
		UPDATE users SET
			login_attempts = CASE
				WHEN last_login_at >= $2 AND last_login_at < $3 THEN login_attempts + 1
				ELSE 1
			END,
			last_login_at = $4
		WHERE id = $1
		RETURNING last_login_at, login_attempts
	`

	var stamp models.LastLogin
	err := r.pool.QueryRow(ctx, query, id, dayStart, dayEnd, now).
		Scan(&stamp.At, &stamp.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.LastLogin{}, ErrUserNotFound
	}
	return stamp, err
}

// SetResetToken installs a fresh recovery token, replacing any token
// still outstanding so at most one can ever be live per user.
func (r *UserRepository) SetResetToken(ctx context.Context, id string, token string, expires time.Time) error {
	const query = `
		UPDATE users SET reset_token = $2, reset_expires = $3 WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, token, expires)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE reset_token = $1 AND reset_expires > $2
	`
	return scanUser(r.pool.QueryRow(ctx, query, token, now))
}

// ConsumeResetPassword sets the password and clears the token in one
// compare-and-clear UPDATE: of two concurrent consumers only one can
// match the still-present token, the other sees ErrUserNotFound.
func (r *UserRepository) ConsumeResetPassword(ctx context.Context, token string, now time.Time, passwordHash []byte) (models.User, error) {
	const query = `
		UPDATE users SET
			password_hash = $3,
			reset_token = NULL,
			reset_expires = NULL
		WHERE reset_token = $1 AND reset_expires > $2
		RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, query, token, now, passwordHash))
}

// ConsumeResetProfile applies a profile mutation under the same
// compare-and-clear condition. A username collision aborts the whole
// statement, so the token survives for a retry.
func (r *UserRepository) ConsumeResetProfile(ctx context.Context, token string, now time.Time, upd models.ProfileUpdate) (models.User, error) {
	const query = `
		UPDATE users SET
			first_name = COALESCE($3, first_name),
			last_name  = COALESCE($4, last_name),
			username   = COALESCE($5, username),
			rank       = COALESCE($6, rank),
			subscribe  = COALESCE($7, subscribe),
			reset_token = NULL,
			reset_expires = NULL
		WHERE reset_token = $1 AND reset_expires > $2
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, token, now,
		upd.FirstName,
		upd.LastName,
		upd.Username,
		(*string)(upd.Rank),
		(*string)(upd.Subscribe),
	))
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUsername
	}
	return user, err
}

func (r *UserRepository) ListNonAdmin(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT ` + userColumns + ` FROM users WHERE rank <> $1 ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, models.RankAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) DeleteNonAdmin(ctx context.Context) (int64, error) {
	const query = `DELETE FROM users WHERE rank <> $1`
	cmd, err := r.pool.Exec(ctx, query, models.RankAdmin)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
