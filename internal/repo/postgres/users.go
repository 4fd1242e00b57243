package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id::text, name, email, password_hash, role, course, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return observe(r.prom, op, fn)
}

func observe(prom *observability.Prom, op string, fn func() error) error {
	if prom != nil {
		return prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, role, course, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Course, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) && isConstraint(err, "users_email_uniq") {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("users.create: %w", err)
	}

	if u.EnrolledCourses == nil {
		u.EnrolledCourses = []user.Enrollment{}
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("users.get_by_email: %w", err)
	}

	u.EnrolledCourses, err = loadEnrollments(ctx, r.pool, u.ID)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	u, err := getUser(ctx, r.pool, r.prom, id, false)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) ListByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	var rows pgx.Rows

	err := r.observe("users.list_by_role", func() error {
		var err error
		rows, err = r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at DESC, id DESC`,
			string(role),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("users.list_by_role: %w", err)
	}

	out := make([]user.User, 0)
	ids := make([]string, 0)
	index := make(map[string]int)

	for rows.Next() {
		var u user.User
		if err := scanUser(rows, &u); err != nil {
			rows.Close()
			return nil, fmt.Errorf("users.list_by_role: scan: %w", err)
		}
		u.EnrolledCourses = []user.Enrollment{}
		index[u.ID] = len(out)
		ids = append(ids, u.ID)
		out = append(out, u)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users.list_by_role: %w", err)
	}

	if len(ids) == 0 {
		return out, nil
	}

	// one round trip for every listed user's enrollments
	erows, err := r.pool.Query(ctx,
		`SELECT user_id::text, course_id::text, enrolled_at
		FROM user_enrollments
		WHERE user_id = ANY($1::uuid[])
		ORDER BY enrolled_at ASC, course_id ASC`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("users.list_by_role: enrollments: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var userID string
		var e user.Enrollment
		if err := erows.Scan(&userID, &e.CourseID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("users.list_by_role: enrollments scan: %w", err)
		}
		if i, ok := index[userID]; ok {
			out[i].EnrolledCourses = append(out[i].EnrolledCourses, e)
		}
	}

	if err := erows.Err(); err != nil {
		return nil, fmt.Errorf("users.list_by_role: enrollments: %w", err)
	}

	return out, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error) {
	var u user.User

	err := r.observe("users.update_profile", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			SET name = $2, email = $3, course = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, p.Name, p.Email, p.Course,
		), &u)
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows), isInvalidText(err):
			return user.User{}, user.ErrNotFound
		case IsUniqueViolation(err) && isConstraint(err, "users_email_uniq"):
			return user.User{}, user.ErrEmailTaken
		default:
			return user.User{}, fmt.Errorf("users.update_profile: %w", err)
		}
	}

	u.EnrolledCourses, err = loadEnrollments(ctx, r.pool, u.ID)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	var affected int64

	err := r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, hash,
		)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		if isInvalidText(err) {
			return user.ErrNotFound
		}
		return fmt.Errorf("users.update_password: %w", err)
	}

	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func getUser(ctx context.Context, q querier, prom *observability.Prom, id string, forUpdate bool) (user.User, error) {
	var u user.User

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	op := "users.get_by_id"
	if forUpdate {
		query += ` FOR UPDATE`
		op = "users.get_for_update"
	}

	err := observe(prom, op, func() error {
		return scanUser(q.QueryRow(ctx, query, id), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("%s: %w", op, err)
	}

	u.EnrolledCourses, err = loadEnrollments(ctx, q, u.ID)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func loadEnrollments(ctx context.Context, q querier, userID string) ([]user.Enrollment, error) {
	rows, err := q.Query(ctx,
		`SELECT course_id::text, enrolled_at
		FROM user_enrollments
		WHERE user_id = $1
		ORDER BY enrolled_at ASC, course_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("user_enrollments.list: %w", err)
	}
	defer rows.Close()

	out := make([]user.Enrollment, 0)
	for rows.Next() {
		var e user.Enrollment
		if err := rows.Scan(&e.CourseID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("user_enrollments.list: scan: %w", err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user_enrollments.list: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row, u *user.User) error {
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Course, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return err
	}
	u.Role = user.Role(role)
	return nil
}
