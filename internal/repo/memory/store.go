package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/enrollhub/internal/domain/course"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/enrollment"
	"github.com/google/uuid"
)

// Store keeps users and courses in process memory. Transactions take the
// single write lock, work on a staged copy and swap it in on success.
//
// Slices inside stored records are never mutated in place, so a shallow
// copy of the maps is enough for staging.
type Store struct {
	mu sync.RWMutex
	st state
}

type state struct {
	users   map[string]user.User
	courses map[string]course.Course
	emails  map[string]string // email -> user id
}

func (s state) clone() state {
	out := state{
		users:   make(map[string]user.User, len(s.users)),
		courses: make(map[string]course.Course, len(s.courses)),
		emails:  make(map[string]string, len(s.emails)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.courses {
		out.courses[k] = v
	}
	for k, v := range s.emails {
		out.emails[k] = v
	}
	return out
}

func NewStore() *Store {
	return &Store{
		st: state{
			users:   make(map[string]user.User),
			courses: make(map[string]course.Course),
			emails:  make(map[string]string),
		},
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// users

func (s *Store) Create(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.st.emails[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.EnrolledCourses == nil {
		u.EnrolledCourses = []user.Enrollment{}
	}

	s.st.users[u.ID] = u
	s.st.emails[u.Email] = u.ID

	return u, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.st.emails[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return s.st.users[id], nil
}

func (s *Store) GetByID(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.st.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListByRole(_ context.Context, role user.Role) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0)
	for _, u := range s.st.users {
		if u.Role == role {
			out = append(out, u)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, p user.Profile) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if owner, taken := s.st.emails[p.Email]; taken && owner != id {
		return user.User{}, user.ErrEmailTaken
	}

	delete(s.st.emails, u.Email)
	u.Name = p.Name
	u.Email = p.Email
	u.Course = p.Course
	u.UpdatedAt = time.Now().UTC()

	s.st.users[id] = u
	s.st.emails[u.Email] = id

	return u, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.users[id]
	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	s.st.users[id] = u

	return nil
}

// courses

func (s *Store) ListCourses(_ context.Context) ([]course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]course.Course, 0, len(s.st.courses))
	for _, c := range s.st.courses {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Store) GetCourse(_ context.Context, id string) (course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.st.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateCourse(_ context.Context, req course.CreateCourseRequest, createdBy string) (course.Course, error) {
	c := course.NewFromCreateRequest(req, createdBy)

	s.mu.Lock()
	s.st.courses[c.ID] = c
	s.mu.Unlock()

	return c, nil
}

func (s *Store) UpdateCourse(_ context.Context, id string, req course.UpdateCourseRequest) (course.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.st.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}

	c.Title = req.Title
	c.Description = req.Description
	c.Instructor = req.Instructor
	c.Duration = req.Duration
	c.Level = req.Level
	c.Price = req.Price
	c.UpdatedAt = time.Now().UTC()

	s.st.courses[id] = c
	return c, nil
}

// enrollment transactions

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx enrollment.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()

	if err := fn(ctx, &memTx{st: staged}); err != nil {
		return err
	}

	s.st = staged
	return nil
}

type memTx struct {
	st state
}

func (t *memTx) GetCourseForUpdate(_ context.Context, courseID string) (course.Course, error) {
	c, ok := t.st.courses[courseID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (t *memTx) GetUserForUpdate(_ context.Context, userID string) (user.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (t *memTx) AddUserEnrollment(_ context.Context, userID string, e user.Enrollment) error {
	u, ok := t.st.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	if u.IsEnrolledIn(e.CourseID) {
		return enrollment.ErrAlreadyEnrolled
	}

	next := make([]user.Enrollment, 0, len(u.EnrolledCourses)+1)
	next = append(next, u.EnrolledCourses...)
	u.EnrolledCourses = append(next, e)

	t.st.users[userID] = u
	return nil
}

func (t *memTx) RemoveUserEnrollment(_ context.Context, userID, courseID string) error {
	u, ok := t.st.users[userID]
	if !ok {
		return nil
	}

	u.EnrolledCourses = withoutEnrollment(u.EnrolledCourses, courseID)
	t.st.users[userID] = u
	return nil
}

func (t *memTx) AddRosterStudent(_ context.Context, courseID, userID string) error {
	c, ok := t.st.courses[courseID]
	if !ok {
		return course.ErrNotFound
	}
	if c.HasStudent(userID) {
		return nil
	}

	next := make([]string, 0, len(c.EnrolledStudents)+1)
	next = append(next, c.EnrolledStudents...)
	c.EnrolledStudents = append(next, userID)
	c.UpdatedAt = time.Now().UTC()

	t.st.courses[courseID] = c
	return nil
}

func (t *memTx) RemoveRosterStudent(_ context.Context, courseID, userID string) error {
	c, ok := t.st.courses[courseID]
	if !ok {
		return nil
	}

	c.EnrolledStudents = withoutID(c.EnrolledStudents, userID)
	t.st.courses[courseID] = c
	return nil
}

func (t *memTx) PullCourseFromUsers(_ context.Context, courseID string) (int64, error) {
	var n int64
	for id, u := range t.st.users {
		if !u.IsEnrolledIn(courseID) {
			continue
		}
		u.EnrolledCourses = withoutEnrollment(u.EnrolledCourses, courseID)
		t.st.users[id] = u
		n++
	}
	return n, nil
}

func (t *memTx) DeleteCourse(_ context.Context, courseID string) error {
	if _, ok := t.st.courses[courseID]; !ok {
		return course.ErrNotFound
	}
	delete(t.st.courses, courseID)
	return nil
}

func (t *memTx) PullUserFromRosters(_ context.Context, userID string) (int64, error) {
	var n int64
	for id, c := range t.st.courses {
		if !c.HasStudent(userID) {
			continue
		}
		c.EnrolledStudents = withoutID(c.EnrolledStudents, userID)
		t.st.courses[id] = c
		n++
	}
	return n, nil
}

func (t *memTx) DeleteUser(_ context.Context, userID string) error {
	u, ok := t.st.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	delete(t.st.emails, u.Email)
	delete(t.st.users, userID)
	return nil
}

func withoutEnrollment(in []user.Enrollment, courseID string) []user.Enrollment {
	out := make([]user.Enrollment, 0, len(in))
	for _, e := range in {
		if e.CourseID != courseID {
			out = append(out, e)
		}
	}
	return out
}

func withoutID(in []string, id string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
