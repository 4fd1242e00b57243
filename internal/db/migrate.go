package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent and safe to run on every start.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY,
    name text NOT NULL,
    email text NOT NULL,
    password_hash text NOT NULL,
    role text NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'admin')),
    course text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_uniq ON users (email);
CREATE INDEX IF NOT EXISTS users_role_created_idx ON users (role, created_at DESC);

CREATE TABLE IF NOT EXISTS courses (
    id uuid PRIMARY KEY,
    title text NOT NULL,
    description text NOT NULL,
    instructor text NOT NULL,
    duration text NOT NULL,
    level text NOT NULL CHECK (level IN ('Beginner', 'Intermediate', 'Advanced')),
    price double precision NOT NULL DEFAULT 0 CHECK (price >= 0),
    enrolled_students uuid[] NOT NULL DEFAULT '{}',
    created_by uuid REFERENCES users(id) ON DELETE SET NULL,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

-- earlier schemas stored numeric(12,2)
ALTER TABLE courses ALTER COLUMN price TYPE double precision;

CREATE INDEX IF NOT EXISTS courses_created_idx ON courses (created_at DESC);

CREATE TABLE IF NOT EXISTS user_enrollments (
    user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    course_id uuid NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    enrolled_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT user_enrollments_pkey PRIMARY KEY (user_id, course_id)
);

CREATE INDEX IF NOT EXISTS user_enrollments_course_idx ON user_enrollments (course_id);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
