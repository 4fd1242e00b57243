package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/enrollhub/internal/actorctx"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/auth/login", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := hit(); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}

	w := hit()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("unexpected Retry-After %q", w.Header().Get("Retry-After"))
	}

	now = now.Add(time.Minute + time.Second)
	if w := hit(); w.Code != http.StatusOK {
		t.Fatalf("after window: got %d", w.Code)
	}
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(0, time.Minute)
	r := gin.New()
	r.GET("/", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("got %d", w.Code)
		}
	}
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got []string
	r := gin.New()
	r.PUT("/anon", func(c *gin.Context) {
		got = append(got, KeyByUserOrIP(c))
	})
	r.PUT("/authed", func(c *gin.Context) {
		ctx := actorctx.WithUser(c.Request.Context(), user.User{ID: "u-1", Role: user.RoleStudent})
		c.Request = c.Request.WithContext(ctx)
		got = append(got, KeyByUserOrIP(c))
	})

	for _, path := range []string{"/anon", "/authed"} {
		req := httptest.NewRequest(http.MethodPut, path, nil)
		req.RemoteAddr = "10.0.0.9:5555"
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(got) != 2 || got[0] != "10.0.0.9" || got[1] != "user:u-1" {
		t.Fatalf("unexpected keys %v", got)
	}
}
