package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	userID := primitive.NewObjectID()
	valid, err := GenerateJWT(testSecret, userID.Hex(), "a@example.com", "user", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaims{
		UserID:         userID.Hex(),
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Hour).Unix()},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	foreign, err := GenerateJWT("other-secret", userID.Hex(), "a@example.com", "user", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"valid token", valid, http.StatusOK},
		{"missing token", "", http.StatusUnauthorized},
		{"malformed token", "not-a-jwt", http.StatusUnauthorized},
		{"expired token", expired, http.StatusUnauthorized},
		{"wrong secret", foreign, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			var gotID primitive.ObjectID
			e.GET("/me", func(c echo.Context) error {
				id, err := ExtractUserID(c)
				if err != nil {
					return err
				}
				gotID = id
				return okHandler(c)
			}, JWTMiddleware(testSecret))

			rec := serve(e, http.MethodGet, "/me", tt.token)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && gotID != userID {
				t.Errorf("user id = %s, want %s", gotID.Hex(), userID.Hex())
			}
		})
	}
}

func TestGenerateJWTWithoutExpiry(t *testing.T) {
	token, err := GenerateJWT(testSecret, primitive.NewObjectID().Hex(), "", "admin", 0)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.ExpiresAt != 0 || claims.UserType != "admin" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestRequireUserType(t *testing.T) {
	admin, _ := GenerateJWT(testSecret, primitive.NewObjectID().Hex(), "", "admin", time.Hour)
	member, _ := GenerateJWT(testSecret, primitive.NewObjectID().Hex(), "", "user", time.Hour)

	e := echo.New()
	e.GET("/admin", okHandler, JWTMiddleware(testSecret), RequireUserType("admin"))

	if rec := serve(e, http.MethodGet, "/admin", admin); rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin", member); rec.Code != http.StatusForbidden {
		t.Errorf("member status = %d, want 403", rec.Code)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	e := echo.New()
	e.GET("/api/admin/matching-bonus/run-cycle", okHandler, limiter.RateLimit())
	e.GET("/health", okHandler, limiter.RateLimit())

	path := "/api/admin/matching-bonus/run-cycle"
	for i := 0; i < 2; i++ {
		if rec := serve(e, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
	if rec := serve(e, http.MethodGet, path, ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/health", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("blocked ip reached /health with status %d", rec.Code)
	}

	clock = clock.Add(limiter.blockDuration + time.Second)
	if rec := serve(e, http.MethodGet, path, ""); rec.Code != http.StatusOK {
		t.Fatalf("status after block = %d, want 200", rec.Code)
	}
}

func TestRateLimiterPrunesIdleLimiters(t *testing.T) {
	limiter := NewRateLimiter()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	e := echo.New()
	e.GET("/health", okHandler, limiter.RateLimit())
	e.GET("/api/matching-bonus/calculate", okHandler, limiter.RateLimit())

	serve(e, http.MethodGet, "/health", "")
	clock = clock.Add(limiter.idleTTL)
	serve(e, http.MethodGet, "/api/matching-bonus/calculate", "")
	clock = clock.Add(time.Second)

	limiter.prune()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.limiters) != 1 {
		t.Fatalf("kept %d limiters, want only the recently used one", len(limiter.limiters))
	}
	for key := range limiter.limiters {
		if !strings.HasSuffix(key, " /api/matching-bonus/calculate") {
			t.Errorf("kept limiter %q", key)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/", okHandler)

	rec := serve(e, http.MethodGet, "/", "")
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
