package user

import (
	"errors"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleAdmin:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already taken")
	ErrNotStudent = errors.New("user is not a student")
)

// Enrollment is one entry of a user's enrolled course list.
type Enrollment struct {
	CourseID   string    `json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

type User struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	PasswordHash    string       `json:"-"` // never expose hash in JSON
	Role            Role         `json:"role"`
	Course          string       `json:"course"`
	EnrolledCourses []Enrollment `json:"enrolledCourses"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (u User) IsEnrolledIn(courseID string) bool {
	for _, e := range u.EnrolledCourses {
		if e.CourseID == courseID {
			return true
		}
	}
	return false
}

// Public returns a copy safe to hand to handlers and the request context.
func (u User) Public() User {
	u.PasswordHash = ""
	if u.EnrolledCourses == nil {
		u.EnrolledCourses = []Enrollment{}
	} else {
		u.EnrolledCourses = append([]Enrollment(nil), u.EnrolledCourses...)
	}
	return u
}

// Profile holds the fields a user (or an admin on their behalf) may edit.
type Profile struct {
	Name   string
	Email  string
	Course string
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Role     Role   `json:"role" binding:"omitempty,oneof=student admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=72"`
}

type UpdateProfileRequest struct {
	Name   string `json:"name" binding:"required,min=2,max=100"`
	Email  string `json:"email" binding:"required,email"`
	Course string `json:"course" binding:"omitempty,max=200"`
}

func (r UpdateProfileRequest) Profile() Profile {
	return Profile{Name: r.Name, Email: r.Email, Course: r.Course}
}
