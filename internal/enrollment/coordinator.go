// Package enrollment keeps the two sides of the enrollment relationship,
// User.EnrolledCourses and Course.EnrolledStudents, consistent.
//
// Every operation runs inside a single store transaction: either both
// sides change or neither does.
package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/enrollhub/internal/domain/course"
	"github.com/geocoder89/enrollhub/internal/domain/user"
)

var ErrAlreadyEnrolled = errors.New("already enrolled in this course")

// Tx is the set of record operations available inside one transaction.
// The *ForUpdate reads lock the row until the transaction ends.
type Tx interface {
	GetCourseForUpdate(ctx context.Context, courseID string) (course.Course, error)
	GetUserForUpdate(ctx context.Context, userID string) (user.User, error)

	AddUserEnrollment(ctx context.Context, userID string, e user.Enrollment) error
	RemoveUserEnrollment(ctx context.Context, userID, courseID string) error
	AddRosterStudent(ctx context.Context, courseID, userID string) error
	RemoveRosterStudent(ctx context.Context, courseID, userID string) error

	PullCourseFromUsers(ctx context.Context, courseID string) (int64, error)
	DeleteCourse(ctx context.Context, courseID string) error
	PullUserFromRosters(ctx context.Context, userID string) (int64, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Store runs fn in a transaction. A non-nil error from fn rolls everything back.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Recorder receives one outcome per coordinator call. Optional.
type Recorder interface {
	ObserveEnrollment(op, result string)
}

type Coordinator struct {
	store Store
	log   *slog.Logger
	rec   Recorder
	now   func() time.Time
}

func NewCoordinator(store Store, log *slog.Logger, rec Recorder) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store: store,
		log:   log,
		rec:   rec,
		now:   time.Now,
	}
}

func (c *Coordinator) Enroll(ctx context.Context, userID, courseID string) error {
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		// lock order is always course then user so concurrent calls cannot deadlock
		if _, err := tx.GetCourseForUpdate(ctx, courseID); err != nil {
			return err
		}

		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if u.IsEnrolledIn(courseID) {
			return ErrAlreadyEnrolled
		}

		err = tx.AddUserEnrollment(ctx, userID, user.Enrollment{
			CourseID:   courseID,
			EnrolledAt: c.now().UTC(),
		})
		if err != nil {
			return err
		}

		return tx.AddRosterStudent(ctx, courseID, userID)
	})

	c.record("enroll", err)
	if err == nil {
		c.log.InfoContext(ctx, "enrollment.created", "user_id", userID, "course_id", courseID)
	}
	return err
}

// Unenroll is idempotent: removing a relationship that does not exist succeeds.
func (c *Coordinator) Unenroll(ctx context.Context, userID, courseID string) error {
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.RemoveUserEnrollment(ctx, userID, courseID); err != nil {
			return err
		}
		return tx.RemoveRosterStudent(ctx, courseID, userID)
	})

	c.record("unenroll", err)
	if err == nil {
		c.log.InfoContext(ctx, "enrollment.removed", "user_id", userID, "course_id", courseID)
	}
	return err
}

// DeleteCourse removes the course and pulls it from every enrolled user's list.
func (c *Coordinator) DeleteCourse(ctx context.Context, courseID string) error {
	var pulled int64

	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetCourseForUpdate(ctx, courseID); err != nil {
			return err
		}

		n, err := tx.PullCourseFromUsers(ctx, courseID)
		if err != nil {
			return err
		}
		pulled = n

		return tx.DeleteCourse(ctx, courseID)
	})

	c.record("delete_course", err)
	if err == nil {
		c.log.InfoContext(ctx, "course.deleted", "course_id", courseID, "enrollments_pulled", pulled)
	}
	return err
}

// DeleteStudent removes a student account and pulls it from every course roster.
// Admin accounts cannot be deleted through this path.
func (c *Coordinator) DeleteStudent(ctx context.Context, userID string) error {
	var pulled int64

	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		// rosters (course rows) are touched before the user row to keep the
		// course-then-user lock order; a failed role check rolls the pull back
		n, err := tx.PullUserFromRosters(ctx, userID)
		if err != nil {
			return err
		}
		pulled = n

		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if u.Role != user.RoleStudent {
			return user.ErrNotStudent
		}

		return tx.DeleteUser(ctx, userID)
	})

	c.record("delete_student", err)
	if err == nil {
		c.log.InfoContext(ctx, "student.deleted", "user_id", userID, "rosters_pulled", pulled)
	}
	return err
}

func (c *Coordinator) record(op string, err error) {
	if c.rec == nil {
		return
	}
	c.rec.ObserveEnrollment(op, resultOf(err))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyEnrolled):
		return "already_enrolled"
	case errors.Is(err, course.ErrNotFound), errors.Is(err, user.ErrNotFound):
		return "not_found"
	case errors.Is(err, user.ErrNotStudent):
		return "not_student"
	default:
		return "error"
	}
}
