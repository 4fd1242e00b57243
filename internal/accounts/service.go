package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/security"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrAdminSignupDisabled    = errors.New("admin self-registration is disabled")
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	ListByRole(ctx context.Context, role user.Role) ([]user.User, error)
	UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type Options struct {
	RegisterCost     int
	ChangeCost       int
	AllowAdminSignup bool
}

type Service struct {
	users UserStore
	opts  Options
}

func NewService(users UserStore, opts Options) *Service {
	return &Service{users: users, opts: opts}
}

func (s *Service) Register(ctx context.Context, req user.RegisterRequest) (user.User, error) {
	role := req.Role
	if role == "" {
		role = user.RoleStudent
	}
	if !role.IsValid() {
		return user.User{}, fmt.Errorf("register: invalid role %q", role)
	}
	if role == user.RoleAdmin && !s.opts.AllowAdminSignup {
		return user.User{}, ErrAdminSignupDisabled
	}

	// cheap pre-check; the unique index still decides races
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return user.User{}, user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	hash, err := security.HashPasswordCost(req.Password, s.opts.RegisterCost)
	if err != nil {
		return user.User{}, fmt.Errorf("register: hash password: %w", err)
	}

	now := time.Now().UTC()

	return s.users.Create(ctx, user.User{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		PasswordHash:    hash,
		Role:            role,
		EnrolledCourses: []user.Enrollment{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, err
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		return user.User{}, ErrInvalidCredentials
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := security.CheckPassword(u.PasswordHash, current); err != nil {
		return ErrInvalidCurrentPassword
	}

	hash, err := security.HashPasswordCost(next, s.opts.ChangeCost)
	if err != nil {
		return fmt.Errorf("change password: hash password: %w", err)
	}

	return s.users.UpdatePasswordHash(ctx, userID, hash)
}

// UpdateProfile edits the caller's own name, email and course label.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p user.Profile) (user.User, error) {
	if err := s.ensureEmailFree(ctx, userID, p.Email); err != nil {
		return user.User{}, err
	}

	return s.users.UpdateProfile(ctx, userID, p)
}

func (s *Service) ListStudents(ctx context.Context) ([]user.User, error) {
	return s.users.ListByRole(ctx, user.RoleStudent)
}

// UpdateStudent is the admin edit path. Only student accounts may be edited.
func (s *Service) UpdateStudent(ctx context.Context, id string, p user.Profile) (user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if u.Role != user.RoleStudent {
		return user.User{}, user.ErrNotStudent
	}

	if err := s.ensureEmailFree(ctx, id, p.Email); err != nil {
		return user.User{}, err
	}

	return s.users.UpdateProfile(ctx, id, p)
}

func (s *Service) ensureEmailFree(ctx context.Context, ownerID, email string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return err
	}

	if existing.ID != ownerID {
		return user.ErrEmailTaken
	}
	return nil
}
