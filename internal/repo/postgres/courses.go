package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/enrollhub/internal/domain/course"
	"github.com/geocoder89/enrollhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const courseColumns = `id::text, title, description, instructor, duration, level, price::float8,
	enrolled_students::text[], COALESCE(created_by::text, ''), created_at, updated_at`

type CoursesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCoursesRepo(pool *pgxpool.Pool, prom *observability.Prom) *CoursesRepo {
	return &CoursesRepo{pool: pool, prom: prom}
}

func (r *CoursesRepo) observe(op string, fn func() error) error {
	return observe(r.prom, op, fn)
}

func (r *CoursesRepo) ListCourses(ctx context.Context) ([]course.Course, error) {
	var rows pgx.Rows

	err := r.observe("courses.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx,
			`SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC, id DESC`)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("courses.list: %w", err)
	}
	defer rows.Close()

	out := make([]course.Course, 0)
	for rows.Next() {
		var c course.Course
		if err := scanCourse(rows, &c); err != nil {
			return nil, fmt.Errorf("courses.list: scan: %w", err)
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("courses.list: %w", err)
	}
	return out, nil
}

func (r *CoursesRepo) GetCourse(ctx context.Context, id string) (course.Course, error) {
	return getCourse(ctx, r.pool, r.prom, id, false)
}

func (r *CoursesRepo) CreateCourse(ctx context.Context, req course.CreateCourseRequest, createdBy string) (course.Course, error) {
	c := course.NewFromCreateRequest(req, createdBy)

	var creator any
	if createdBy != "" {
		creator = createdBy
	}

	err := r.observe("courses.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO courses
			(id, title, description, instructor, duration, level, price, enrolled_students, created_by, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,'{}',$8,$9,$10)`,
			c.ID, c.Title, c.Description, c.Instructor, c.Duration, string(c.Level), c.Price,
			creator, c.CreatedAt, c.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return course.Course{}, fmt.Errorf("courses.create: %w", err)
	}

	return c, nil
}

func (r *CoursesRepo) UpdateCourse(ctx context.Context, id string, req course.UpdateCourseRequest) (course.Course, error) {
	var c course.Course

	err := r.observe("courses.update", func() error {
		return scanCourse(r.pool.QueryRow(ctx,
			`UPDATE courses
			SET title = $2, description = $3, instructor = $4, duration = $5,
				level = $6, price = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING `+courseColumns,
			id, req.Title, req.Description, req.Instructor, req.Duration, string(req.Level), req.Price,
		), &c)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, fmt.Errorf("courses.update: %w", err)
	}
	return c, nil
}

func getCourse(ctx context.Context, q querier, prom *observability.Prom, id string, forUpdate bool) (course.Course, error) {
	var c course.Course

	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	op := "courses.get_by_id"
	if forUpdate {
		query += ` FOR UPDATE`
		op = "courses.get_for_update"
	}

	err := observe(prom, op, func() error {
		return scanCourse(q.QueryRow(ctx, query, id), &c)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func scanCourse(row pgx.Row, c *course.Course) error {
	var level string
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Instructor, &c.Duration, &level, &c.Price,
		&c.EnrolledStudents, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	c.Level = course.Level(level)
	if c.EnrolledStudents == nil {
		c.EnrolledStudents = []string{}
	}
	return nil
}
