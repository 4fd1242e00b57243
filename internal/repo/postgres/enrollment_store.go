package postgres

import (
	"context"
	"fmt"

	"github.com/geocoder89/enrollhub/internal/domain/course"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/enrollment"
	"github.com/geocoder89/enrollhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentStore runs coordinator work inside one pgx transaction.
type EnrollmentStore struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEnrollmentStore(pool *pgxpool.Pool, prom *observability.Prom) *EnrollmentStore {
	return &EnrollmentStore{pool: pool, prom: prom}
}

func (s *EnrollmentStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx enrollment.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("enrollment: begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &txStore{tx: tx, prom: s.prom}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("enrollment: commit: %w", err)
	}
	return nil
}

type txStore struct {
	tx   pgx.Tx
	prom *observability.Prom
}

func (t *txStore) observe(op string, fn func() error) error {
	return observe(t.prom, op, fn)
}

func (t *txStore) exec(ctx context.Context, op, sql string, args ...any) (int64, error) {
	var affected int64

	err := t.observe(op, func() error {
		tag, err := t.tx.Exec(ctx, sql, args...)
		affected = tag.RowsAffected()
		return err
	})
	return affected, err
}

func (t *txStore) GetCourseForUpdate(ctx context.Context, courseID string) (course.Course, error) {
	return getCourse(ctx, t.tx, t.prom, courseID, true)
}

func (t *txStore) GetUserForUpdate(ctx context.Context, userID string) (user.User, error) {
	return getUser(ctx, t.tx, t.prom, userID, true)
}

func (t *txStore) AddUserEnrollment(ctx context.Context, userID string, e user.Enrollment) error {
	_, err := t.exec(ctx, "user_enrollments.insert",
		`INSERT INTO user_enrollments (user_id, course_id, enrolled_at) VALUES ($1, $2, $3)`,
		userID, e.CourseID, e.EnrolledAt,
	)
	if err != nil {
		if IsUniqueViolation(err) && isConstraint(err, "user_enrollments_pkey") {
			return enrollment.ErrAlreadyEnrolled
		}
		return fmt.Errorf("user_enrollments.insert: %w", err)
	}
	return nil
}

func (t *txStore) RemoveUserEnrollment(ctx context.Context, userID, courseID string) error {
	_, err := t.exec(ctx, "user_enrollments.delete",
		`DELETE FROM user_enrollments WHERE user_id = $1 AND course_id = $2`,
		userID, courseID,
	)
	if err != nil {
		return fmt.Errorf("user_enrollments.delete: %w", err)
	}
	return nil
}

func (t *txStore) AddRosterStudent(ctx context.Context, courseID, userID string) error {
	n, err := t.exec(ctx, "courses.roster_add",
		`UPDATE courses
		SET enrolled_students = array_append(enrolled_students, $2::uuid), updated_at = NOW()
		WHERE id = $1 AND NOT ($2::uuid = ANY(enrolled_students))`,
		courseID, userID,
	)
	if err != nil {
		return fmt.Errorf("courses.roster_add: %w", err)
	}
	if n == 0 {
		// either already on the roster or the course is gone
		var exists bool
		if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, courseID).Scan(&exists); err != nil {
			return fmt.Errorf("courses.roster_add: %w", err)
		}
		if !exists {
			return course.ErrNotFound
		}
	}
	return nil
}

func (t *txStore) RemoveRosterStudent(ctx context.Context, courseID, userID string) error {
	_, err := t.exec(ctx, "courses.roster_remove",
		`UPDATE courses
		SET enrolled_students = array_remove(enrolled_students, $2::uuid), updated_at = NOW()
		WHERE id = $1 AND $2::uuid = ANY(enrolled_students)`,
		courseID, userID,
	)
	if err != nil {
		return fmt.Errorf("courses.roster_remove: %w", err)
	}
	return nil
}

func (t *txStore) PullCourseFromUsers(ctx context.Context, courseID string) (int64, error) {
	n, err := t.exec(ctx, "user_enrollments.pull_course",
		`DELETE FROM user_enrollments WHERE course_id = $1`, courseID)
	if err != nil {
		return 0, fmt.Errorf("user_enrollments.pull_course: %w", err)
	}
	return n, nil
}

func (t *txStore) DeleteCourse(ctx context.Context, courseID string) error {
	n, err := t.exec(ctx, "courses.delete", `DELETE FROM courses WHERE id = $1`, courseID)
	if err != nil {
		if isInvalidText(err) {
			return course.ErrNotFound
		}
		return fmt.Errorf("courses.delete: %w", err)
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (t *txStore) PullUserFromRosters(ctx context.Context, userID string) (int64, error) {
	n, err := t.exec(ctx, "courses.pull_user",
		`UPDATE courses
		SET enrolled_students = array_remove(enrolled_students, $1::uuid), updated_at = NOW()
		WHERE $1::uuid = ANY(enrolled_students)`,
		userID,
	)
	if err != nil {
		if isInvalidText(err) {
			return 0, user.ErrNotFound
		}
		return 0, fmt.Errorf("courses.pull_user: %w", err)
	}
	return n, nil
}

func (t *txStore) DeleteUser(ctx context.Context, userID string) error {
	n, err := t.exec(ctx, "users.delete", `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		if isInvalidText(err) {
			return user.ErrNotFound
		}
		return fmt.Errorf("users.delete: %w", err)
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
