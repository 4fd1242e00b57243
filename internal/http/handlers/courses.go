package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/enrollhub/internal/domain/course"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/enrollment"
	"github.com/geocoder89/enrollhub/internal/http/middlewares"
	"github.com/geocoder89/enrollhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type CourseStore interface {
	ListCourses(ctx context.Context) ([]course.Course, error)
	GetCourse(ctx context.Context, id string) (course.Course, error)
	CreateCourse(ctx context.Context, req course.CreateCourseRequest, createdBy string) (course.Course, error)
	UpdateCourse(ctx context.Context, id string, req course.UpdateCourseRequest) (course.Course, error)
}

type EnrollmentService interface {
	Enroll(ctx context.Context, userID, courseID string) error
	Unenroll(ctx context.Context, userID, courseID string) error
	DeleteCourse(ctx context.Context, courseID string) error
	DeleteStudent(ctx context.Context, userID string) error
}

type CoursesHandler struct {
	courses    CourseStore
	enrollment EnrollmentService
	log        *slog.Logger
}

func NewCoursesHandler(courses CourseStore, enrollment EnrollmentService, log *slog.Logger) *CoursesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CoursesHandler{courses: courses, enrollment: enrollment, log: log}
}

func (h *CoursesHandler) ListCourses(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	courses, err := h.courses.ListCourses(cctx)
	if err != nil {
		respondServerError(ctx, h.log, "Could not list courses", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"courses": courses})
}

func (h *CoursesHandler) CreateCourse(ctx *gin.Context) {
	var req course.CreateCourseRequest

	if !BindJSON(ctx, &req) {
		return
	}

	var createdBy string
	if u, ok := middlewares.CurrentUser(ctx); ok {
		createdBy = u.ID
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	c, err := h.courses.CreateCourse(cctx, req, createdBy)
	if err != nil {
		respondServerError(ctx, h.log, "Could not create course", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Course created successfully",
		"course":  c,
	})
}

func (h *CoursesHandler) UpdateCourse(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Course not found")
		return
	}

	var req course.UpdateCourseRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	c, err := h.courses.UpdateCourse(cctx, id, req)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			RespondNotFound(ctx, "Course not found")
			return
		}
		respondServerError(ctx, h.log, "Could not update course", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Course updated successfully",
		"course":  c,
	})
}

func (h *CoursesHandler) DeleteCourse(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Course not found")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.enrollment.DeleteCourse(cctx, id); err != nil {
		if errors.Is(err, course.ErrNotFound) {
			RespondNotFound(ctx, "Course not found")
			return
		}
		respondServerError(ctx, h.log, "Could not delete course", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Course deleted successfully"})
}

func (h *CoursesHandler) Enroll(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Course not found")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.enrollment.Enroll(cctx, u.ID, id); err != nil {
		switch {
		case errors.Is(err, enrollment.ErrAlreadyEnrolled):
			RespondRejected(ctx, "already_enrolled", "Already enrolled in this course")
		case errors.Is(err, course.ErrNotFound):
			RespondNotFound(ctx, "Course not found")
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		default:
			respondServerError(ctx, h.log, "Could not enroll in course", err)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Enrolled successfully"})
}

// Unenroll is idempotent: an id that cannot exist is simply nothing to remove.
func (h *CoursesHandler) Unenroll(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")
	if utils.IsUUID(id) {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.enrollment.Unenroll(cctx, u.ID, id); err != nil {
			respondServerError(ctx, h.log, "Could not unenroll from course", err)
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Unenrolled successfully"})
}
