package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/http/middlewares"
	"github.com/geocoder89/enrollhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type StudentService interface {
	ListStudents(ctx context.Context) ([]user.User, error)
	UpdateStudent(ctx context.Context, id string, p user.Profile) (user.User, error)
	UpdateProfile(ctx context.Context, userID string, p user.Profile) (user.User, error)
}

type StudentRemover interface {
	DeleteStudent(ctx context.Context, userID string) error
}

type StudentsHandler struct {
	students StudentService
	remover  StudentRemover
	log      *slog.Logger
}

func NewStudentsHandler(students StudentService, remover StudentRemover, log *slog.Logger) *StudentsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StudentsHandler{students: students, remover: remover, log: log}
}

func (h *StudentsHandler) ListStudents(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	students, err := h.students.ListStudents(cctx)
	if err != nil {
		respondServerError(ctx, h.log, "Could not list students", err)
		return
	}

	out := make([]user.User, 0, len(students))
	for _, s := range students {
		out = append(out, s.Public())
	}

	ctx.JSON(http.StatusOK, gin.H{"students": out})
}

func (h *StudentsHandler) UpdateStudent(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Student not found")
		return
	}

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.students.UpdateStudent(cctx, id, req.Profile())
	if err != nil {
		h.respondUserError(ctx, "Could not update student", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Student updated successfully",
		"user":    u.Public(),
	})
}

func (h *StudentsHandler) DeleteStudent(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Student not found")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.remover.DeleteStudent(cctx, id); err != nil {
		h.respondUserError(ctx, "Could not delete student", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Student deleted successfully"})
}

func (h *StudentsHandler) UpdateProfile(ctx *gin.Context) {
	current, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.students.UpdateProfile(cctx, current.ID, req.Profile())
	if err != nil {
		h.respondUserError(ctx, "Could not update profile", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    u.Public(),
	})
}

func (h *StudentsHandler) respondUserError(ctx *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "Student not found")
	case errors.Is(err, user.ErrNotStudent):
		RespondRejected(ctx, "not_student", "User is not a student")
	case errors.Is(err, user.ErrEmailTaken):
		RespondRejected(ctx, "email_taken", "Email already in use")
	default:
		respondServerError(ctx, h.log, message, err)
	}
}
