package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/enrollhub/internal/accounts"
	"github.com/geocoder89/enrollhub/internal/auth"
	"github.com/geocoder89/enrollhub/internal/domain/course"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/enrollment"
	apphttp "github.com/geocoder89/enrollhub/internal/http"
	"github.com/geocoder89/enrollhub/internal/http/handlers"
	"github.com/geocoder89/enrollhub/internal/observability"
	"github.com/geocoder89/enrollhub/internal/repo/memory"
	"github.com/geocoder89/enrollhub/internal/revocation"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "router-test-secret"

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
}

type envOptions struct {
	denylist      revocation.Denylist
	checks        []handlers.ReadinessCheck
	authRateLimit int
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	svc := accounts.NewService(store, accounts.Options{
		RegisterCost:     bcrypt.MinCost,
		ChangeCost:       bcrypt.MinCost,
		AllowAdminSignup: true,
	})

	router := apphttp.NewRouter(log, apphttp.Deps{
		Env:            "test",
		Accounts:       svc,
		Tokens:         auth.NewManager(testSecret, 7*24*time.Hour),
		Courses:        store,
		Enrollment:     enrollment.NewCoordinator(store, log, prom),
		Denylist:       opts.denylist,
		Prom:           prom,
		Gatherer:       reg,
		Checks:         opts.checks,
		AllowedOrigins: []string{"http://localhost:5173"},
		MaxBodyBytes:   1 << 20,
		AuthRateLimit:  opts.authRateLimit,
	})

	return &testEnv{router: router, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

type authResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    user.User `json:"user"`
}

type courseResponse struct {
	Message string        `json:"message"`
	Course  course.Course `json:"course"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

func (e *testEnv) register(t *testing.T, name, email, password string, role user.Role) authResponse {
	t.Helper()

	body := map[string]any{"name": name, "email": email, "password": password}
	if role != "" {
		body["role"] = role
	}

	w := e.do(t, http.MethodPost, "/auth/register", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: got %d body=%s", email, w.Code, w.Body.String())
	}
	return decodeJSON[authResponse](t, w)
}

func (e *testEnv) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
}

func (e *testEnv) createCourse(t *testing.T, adminToken, title string) course.Course {
	t.Helper()

	w := e.do(t, http.MethodPost, "/courses", adminToken, map[string]any{
		"title":       title,
		"description": "An introduction",
		"instructor":  "Rob",
		"duration":    "4 weeks",
		"level":       "Beginner",
		"price":       0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create course: got %d body=%s", w.Code, w.Body.String())
	}
	return decodeJSON[courseResponse](t, w).Course
}

func TestAliceEnrollmentScenario(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	env.register(t, "Alice", "alice@example.com", "pw123456", user.RoleStudent)
	admin := env.register(t, "Admin", "admin@example.com", "adminpw1", user.RoleAdmin)

	w := env.login(t, "alice@example.com", "pw123456")
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d body=%s", w.Code, w.Body.String())
	}
	alice := decodeJSON[authResponse](t, w)
	if alice.Token == "" || alice.Message == "" {
		t.Fatalf("login response incomplete: %+v", alice)
	}

	w = env.do(t, http.MethodGet, "/courses", alice.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list courses: got %d", w.Code)
	}

	c := env.createCourse(t, admin.Token, "Go Basics")

	w = env.do(t, http.MethodPost, "/courses/"+c.ID+"/enroll", alice.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("enroll: got %d body=%s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/auth/me", alice.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: got %d", w.Code)
	}
	me := decodeJSON[struct {
		User user.User `json:"user"`
	}](t, w).User

	if len(me.EnrolledCourses) != 1 || me.EnrolledCourses[0].CourseID != c.ID {
		t.Fatalf("expected one enrollment in %s, got %+v", c.ID, me.EnrolledCourses)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("me must not expose the password hash: %s", w.Body.String())
	}

	got, err := env.store.GetCourse(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get course: %v", err)
	}
	if len(got.EnrolledStudents) != 1 || got.EnrolledStudents[0] != me.ID {
		t.Fatalf("roster should contain alice, got %v", got.EnrolledStudents)
	}
}

func TestAdminRoutes_RoleGate(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	student := env.register(t, "Stu", "stu@example.com", "secret1", "")
	admin := env.register(t, "Admin", "admin@example.com", "secret1", user.RoleAdmin)

	body := map[string]any{
		"title": "Go", "description": "d", "instructor": "i",
		"duration": "1w", "level": "Advanced", "price": 10,
	}

	w := env.do(t, http.MethodPost, "/courses", student.Token, body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("student create course: got %d", w.Code)
	}
	if e := decodeJSON[errorResponse](t, w); e.Message == "" || e.RequestID == "" {
		t.Fatalf("error body incomplete: %s", w.Body.String())
	}

	if w := env.do(t, http.MethodPost, "/courses", admin.Token, body); w.Code != http.StatusCreated {
		t.Fatalf("admin create course: got %d body=%s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodGet, "/users/students", student.Token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("student list students: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/users/students", admin.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("admin list students: got %d", w.Code)
	}

	c := env.createCourse(t, admin.Token, "Rust")
	if w := env.do(t, http.MethodPost, "/courses/"+c.ID+"/enroll", admin.Token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("admin enroll: got %d", w.Code)
	}
}

func TestBadTokensAreUnauthorizedEverywhere(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID: alice.User.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   alice.User.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-8 * 24 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-24 * time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// flip the first signature character, which carries only data bits
	parts := strings.Split(alice.Token, ".")
	flipped := "A"
	if parts[2][0] == 'A' {
		flipped = "B"
	}
	parts[2] = flipped + parts[2][1:]
	tampered := strings.Join(parts, ".")

	routes := []struct{ method, path string }{
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/courses"},
		{http.MethodPost, "/courses"},
		{http.MethodPost, "/courses/00000000-0000-0000-0000-000000000001/enroll"},
		{http.MethodGet, "/users/students"},
		{http.MethodPut, "/users/profile"},
	}

	for _, tok := range []string{expiredToken, tampered, "garbage"} {
		for _, rt := range routes {
			if w := env.do(t, rt.method, rt.path, tok, nil); w.Code != http.StatusUnauthorized {
				t.Fatalf("%s %s: got %d", rt.method, rt.path, w.Code)
			}
		}
	}
}

func TestRegisterAndLoginFailures(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "Alice", "alice@example.com", "pw123456", "")

	w := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Alice Again", "email": "alice@example.com", "password": "pw123456",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: got %d", w.Code)
	}
	if e := decodeJSON[errorResponse](t, w); e.Code != "email_taken" {
		t.Fatalf("unexpected code %q", e.Code)
	}

	if w := env.login(t, "alice@example.com", "wrong-pw"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d", w.Code)
	}
	if w := env.login(t, "nobody@example.com", "pw123456"); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid register body: got %d", w.Code)
	}
}

func TestLoginTokenVerifies(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	reg := env.register(t, "Bob", "bob@example.com", "pw123456", "")

	resp := decodeJSON[authResponse](t, env.login(t, "bob@example.com", "pw123456"))

	claims, err := auth.NewManager(testSecret, time.Hour).Verify(resp.Token)
	if err != nil {
		t.Fatalf("verify login token: %v", err)
	}
	if claims.UserID != reg.User.ID {
		t.Fatalf("token user %q, want %q", claims.UserID, reg.User.ID)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")

	w := env.do(t, http.MethodPut, "/auth/change-password", alice.Token, map[string]string{
		"currentPassword": "not-it", "newPassword": "newpass1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong current: got %d", w.Code)
	}
	if w := env.login(t, "alice@example.com", "pw123456"); w.Code != http.StatusOK {
		t.Fatalf("old password should still work: %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/auth/change-password", alice.Token, map[string]string{
		"currentPassword": "pw123456", "newPassword": "newpass1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("change password: got %d body=%s", w.Code, w.Body.String())
	}
	if w := env.login(t, "alice@example.com", "pw123456"); w.Code != http.StatusUnauthorized {
		t.Fatalf("old password should fail: %d", w.Code)
	}
	if w := env.login(t, "alice@example.com", "newpass1"); w.Code != http.StatusOK {
		t.Fatalf("new password should work: %d", w.Code)
	}
}

func TestPasswordOverBcryptByteLimitIsValidationError(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	// 40 characters passes max=72 but is 80 bytes
	long := strings.Repeat("é", 40)

	w := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Eve", "email": "eve@example.com", "password": long,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("register: got %d body=%s", w.Code, w.Body.String())
	}
	if e := decodeJSON[errorResponse](t, w); e.Code != "invalid_request" {
		t.Fatalf("register: unexpected code %q", e.Code)
	}
	if !strings.Contains(w.Body.String(), `"field":"password"`) {
		t.Fatalf("register: expected password field error, body=%s", w.Body.String())
	}

	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")

	w = env.do(t, http.MethodPut, "/auth/change-password", alice.Token, map[string]string{
		"currentPassword": "pw123456", "newPassword": long,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("change password: got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"field":"newPassword"`) {
		t.Fatalf("change password: expected newPassword field error, body=%s", w.Body.String())
	}
	if w := env.login(t, "alice@example.com", "pw123456"); w.Code != http.StatusOK {
		t.Fatalf("password must be unchanged: %d", w.Code)
	}
}

func TestChangePasswordIsRateLimitedPerUser(t *testing.T) {
	env := newTestEnv(t, envOptions{authRateLimit: 2})

	// both registrations share the client IP bucket, which is then full
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")
	bob := env.register(t, "Bob", "bob@example.com", "pw123456", "")

	guess := map[string]string{"currentPassword": "guess", "newPassword": "newpass1"}

	for i := 0; i < 2; i++ {
		if w := env.do(t, http.MethodPut, "/auth/change-password", alice.Token, guess); w.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: got %d body=%s", i+1, w.Code, w.Body.String())
		}
	}

	w := env.do(t, http.MethodPut, "/auth/change-password", alice.Token, guess)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt: got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	if w := env.do(t, http.MethodPut, "/auth/change-password", bob.Token, guess); w.Code != http.StatusBadRequest {
		t.Fatalf("other user must have its own bucket: got %d", w.Code)
	}
}

func TestEnrollTwiceDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")
	admin := env.register(t, "Admin", "admin@example.com", "adminpw1", user.RoleAdmin)
	c := env.createCourse(t, admin.Token, "Go Basics")

	if w := env.do(t, http.MethodPost, "/courses/"+c.ID+"/enroll", alice.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("first enroll: %d", w.Code)
	}

	w := env.do(t, http.MethodPost, "/courses/"+c.ID+"/enroll", alice.Token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second enroll: got %d", w.Code)
	}
	if e := decodeJSON[errorResponse](t, w); e.Code != "already_enrolled" {
		t.Fatalf("unexpected code %q", e.Code)
	}

	u, _ := env.store.GetByID(context.Background(), alice.User.ID)
	got, _ := env.store.GetCourse(context.Background(), c.ID)
	if len(u.EnrolledCourses) != 1 || len(got.EnrolledStudents) != 1 {
		t.Fatalf("duplicated reference: user=%v roster=%v", u.EnrolledCourses, got.EnrolledStudents)
	}

	if w := env.do(t, http.MethodPost, "/courses/not-a-uuid/enroll", alice.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("malformed id: got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/courses/00000000-0000-0000-0000-000000000001/enroll", alice.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown course: got %d", w.Code)
	}

	for i := 0; i < 2; i++ {
		if w := env.do(t, http.MethodPost, "/courses/"+c.ID+"/unenroll", alice.Token, nil); w.Code != http.StatusOK {
			t.Fatalf("unenroll %d: got %d", i, w.Code)
		}
	}

	u, _ = env.store.GetByID(context.Background(), alice.User.ID)
	got, _ = env.store.GetCourse(context.Background(), c.ID)
	if len(u.EnrolledCourses) != 0 || len(got.EnrolledStudents) != 0 {
		t.Fatalf("unenroll left references: user=%v roster=%v", u.EnrolledCourses, got.EnrolledStudents)
	}
}

func TestDeleteCourseCascadesToStudents(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := env.register(t, "Admin", "admin@example.com", "adminpw1", user.RoleAdmin)
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")
	bob := env.register(t, "Bob", "bob@example.com", "pw123456", "")

	c := env.createCourse(t, admin.Token, "Go Basics")
	keep := env.createCourse(t, admin.Token, "Rust")

	for _, tok := range []string{alice.Token, bob.Token} {
		if w := env.do(t, http.MethodPost, "/courses/"+c.ID+"/enroll", tok, nil); w.Code != http.StatusOK {
			t.Fatalf("enroll: %d", w.Code)
		}
	}
	env.do(t, http.MethodPost, "/courses/"+keep.ID+"/enroll", bob.Token, nil)

	if w := env.do(t, http.MethodDelete, "/courses/"+c.ID, admin.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("delete course: got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/courses/"+c.ID, admin.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete again: got %d", w.Code)
	}

	for _, id := range []string{alice.User.ID, bob.User.ID} {
		u, _ := env.store.GetByID(context.Background(), id)
		if u.IsEnrolledIn(c.ID) {
			t.Fatalf("user %s still references deleted course", id)
		}
	}

	b, _ := env.store.GetByID(context.Background(), bob.User.ID)
	if !b.IsEnrolledIn(keep.ID) {
		t.Fatalf("unrelated enrollment was removed")
	}
}

func TestCourseUpdate(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := env.register(t, "Admin", "admin@example.com", "adminpw1", user.RoleAdmin)
	c := env.createCourse(t, admin.Token, "Go Basics")

	update := map[string]any{
		"title": "Go Advanced", "description": "deeper", "instructor": "Rob",
		"duration": "6 weeks", "level": "Advanced", "price": 49.5,
	}

	w := env.do(t, http.MethodPut, "/courses/"+c.ID, admin.Token, update)
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d body=%s", w.Code, w.Body.String())
	}
	got := decodeJSON[courseResponse](t, w).Course
	if got.Title != "Go Advanced" || got.Level != course.LevelAdvanced || got.Price != 49.5 {
		t.Fatalf("update not applied: %+v", got)
	}

	if w := env.do(t, http.MethodPut, "/courses/00000000-0000-0000-0000-000000000001", admin.Token, update); w.Code != http.StatusNotFound {
		t.Fatalf("update unknown: got %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/courses/nope", admin.Token, update); w.Code != http.StatusNotFound {
		t.Fatalf("update malformed: got %d", w.Code)
	}
}

func TestListCoursesNewestFirstWithETag(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := env.register(t, "Admin", "admin@example.com", "adminpw1", user.RoleAdmin)

	first := env.createCourse(t, admin.Token, "First")
	time.Sleep(2 * time.Millisecond)
	second := env.createCourse(t, admin.Token, "Second")

	w := env.do(t, http.MethodGet, "/courses", admin.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	list := decodeJSON[struct {
		Courses []course.Course `json:"courses"`
	}](t, w).Courses

	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/courses", nil)
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rec.Code)
	}
}

func TestStudentAdministration(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	admin := env.register(t, "Admin", "admin@example.com", "adminpw1", user.RoleAdmin)
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")
	env.register(t, "Bob", "bob@example.com", "pw123456", "")
	c := env.createCourse(t, admin.Token, "Go Basics")
	env.do(t, http.MethodPost, "/courses/"+c.ID+"/enroll", alice.Token, nil)

	w := env.do(t, http.MethodGet, "/users/students", admin.Token, nil)
	students := decodeJSON[struct {
		Students []user.User `json:"students"`
	}](t, w).Students
	if len(students) != 2 {
		t.Fatalf("expected 2 students, got %d", len(students))
	}

	w = env.do(t, http.MethodPut, "/users/students/"+alice.User.ID, admin.Token, map[string]string{
		"name": "Alice B", "email": "bob@example.com", "course": "CS",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate email edit: got %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/users/students/"+alice.User.ID, admin.Token, map[string]string{
		"name": "Alice B", "email": "alice.b@example.com", "course": "CS",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit student: got %d body=%s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPut, "/users/students/"+admin.User.ID, admin.Token, map[string]string{
		"name": "Admin", "email": "admin2@example.com",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("edit non-student: got %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/users/students/"+admin.User.ID, admin.Token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("delete non-student: got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/users/students/not-a-uuid", admin.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete malformed: got %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/users/students/"+alice.User.ID, admin.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("delete student: got %d", w.Code)
	}

	got, _ := env.store.GetCourse(context.Background(), c.ID)
	if got.HasStudent(alice.User.ID) {
		t.Fatalf("deleted student still on roster")
	}

	// the deleted student's token no longer resolves to a user
	if w := env.do(t, http.MethodGet, "/auth/me", alice.Token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user token: got %d", w.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")
	env.register(t, "Bob", "bob@example.com", "pw123456", "")

	w := env.do(t, http.MethodPut, "/users/profile", alice.Token, map[string]string{
		"name": "Alice", "email": "bob@example.com",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate email: got %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/users/profile", alice.Token, map[string]string{
		"name": "Alice Smith", "email": "alice@example.com", "course": "Computer Science",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update profile: got %d body=%s", w.Code, w.Body.String())
	}

	me := decodeJSON[struct {
		User user.User `json:"user"`
	}](t, env.do(t, http.MethodGet, "/auth/me", alice.Token, nil)).User
	if me.Name != "Alice Smith" || me.Course != "Computer Science" {
		t.Fatalf("profile not updated: %+v", me)
	}
}

func TestLogoutRevokesWithDenylist(t *testing.T) {
	env := newTestEnv(t, envOptions{denylist: revocation.NewMemoryDenylist()})
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")

	if w := env.do(t, http.MethodPost, "/auth/logout", alice.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/auth/me", alice.Token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: got %d", w.Code)
	}

	fresh := decodeJSON[authResponse](t, env.login(t, "alice@example.com", "pw123456"))
	if w := env.do(t, http.MethodGet, "/auth/me", fresh.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("fresh token: got %d", w.Code)
	}
}

func TestLogoutWithoutDenylistIsClientSide(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	alice := env.register(t, "Alice", "alice@example.com", "pw123456", "")

	if w := env.do(t, http.MethodPost, "/auth/logout", alice.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/auth/me", alice.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("token should stay valid without a denylist: got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, envOptions{checks: []handlers.ReadinessCheck{
		{Name: "store", Ping: func(context.Context) error { return errors.New("down") }},
	}})

	if w := env.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing check: %d", w.Code)
	}

	env.register(t, "Alice", "alice@example.com", "pw123456", "")

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "enrollhub_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}
