package course

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

func (l Level) IsValid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	default:
		return false
	}
}

var ErrNotFound = errors.New("course not found")

type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Instructor       string    `json:"instructor"`
	Duration         string    `json:"duration"`
	Level            Level     `json:"level"`
	Price            float64   `json:"price"`
	EnrolledStudents []string  `json:"enrolledStudents"`
	CreatedBy        string    `json:"createdBy,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (c Course) HasStudent(userID string) bool {
	for _, id := range c.EnrolledStudents {
		if id == userID {
			return true
		}
	}
	return false
}

// CreateCourseRequest is also used as the full-replacement update payload.
type CreateCourseRequest struct {
	Title       string  `json:"title" binding:"required,min=2,max=200"`
	Description string  `json:"description" binding:"required,max=5000"`
	Instructor  string  `json:"instructor" binding:"required,max=120"`
	Duration    string  `json:"duration" binding:"required,max=60"`
	Level       Level   `json:"level" binding:"required,oneof=Beginner Intermediate Advanced"`
	Price       float64 `json:"price" binding:"gte=0"`
}

type UpdateCourseRequest = CreateCourseRequest

func NewFromCreateRequest(req CreateCourseRequest, createdBy string) Course {
	now := time.Now().UTC()

	return Course{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Description:      req.Description,
		Instructor:       req.Instructor,
		Duration:         req.Duration,
		Level:            req.Level,
		Price:            req.Price,
		EnrolledStudents: []string{},
		CreatedBy:        createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
