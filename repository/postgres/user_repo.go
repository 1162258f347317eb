package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
		SELECT id, email, role, status, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var user domain.User
	var role string

	if err := row.Scan(&user.ID, &user.Email, &role, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(role)

	return &user, nil
}

// Upsert inserts a user, or updates it when user.ID is already known.
// A zero ID lets the database assign one.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if user.Status == "" {
		user.Status = "active"
	}

	const insert = `
	INSERT INTO users (email, role, status)
	VALUES ($1, $2, $3)
	RETURNING id, created_at, updated_at
	`
	const upsert = `
	INSERT INTO users (id, email, role, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), NOW())
	ON CONFLICT (id) DO UPDATE
	SET email = EXCLUDED.email,
		role = EXCLUDED.role,
		status = EXCLUDED.status,
		updated_at = NOW()
	RETURNING id, created_at, updated_at
	`

	var row pgx.Row
	if user.ID == 0 {
		row = r.pool.QueryRow(ctx, insert, user.Email, string(user.Role), user.Status)
	} else {
		row = r.pool.QueryRow(ctx, upsert,
			user.ID,
			user.Email,
			string(user.Role),
			user.Status,
			nullTime(user.CreatedAt),
		)
	}

	return row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}
