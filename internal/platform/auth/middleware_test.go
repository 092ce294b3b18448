package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func signTestToken(t *testing.T, claims Claims) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return tokenStr
}

func freshClaims(subject string, roles ...string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles: roles,
	}
}

// runJWT sends a request through JWTMiddleware with the HMAC test key and
// reports the middleware error plus whether the inner handler ran. The
// handler receives the request so tests can inspect the derived context.
func runJWT(t *testing.T, authHeader, path string, inspect func(c echo.Context)) (error, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	if path != "" {
		c.SetPath(path)
	}

	called := false
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error {
		called = true
		if inspect != nil {
			inspect(c)
		}
		return c.String(http.StatusOK, "ok")
	})
	return h(c), called
}

func wantUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an auth error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err, called := runJWT(t, "", "", nil)
	wantUnauthorized(t, err)
	if called {
		t.Error("handler ran without credentials")
	}
}

func TestJWTMiddleware_MalformedHeader(t *testing.T) {
	for _, header := range []string{
		"Token abc123",
		"Bearer",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
	} {
		t.Run(header, func(t *testing.T) {
			err, _ := runJWT(t, header, "", nil)
			wantUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := signTestToken(t, freshClaims("user-123", "therapist"))
	err, called := runJWT(t, "Bearer "+token, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := freshClaims("user-123")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))

	err, called := runJWT(t, "Bearer "+signTestToken(t, claims), "", nil)
	wantUnauthorized(t, err)
	if called {
		t.Error("handler ran on an expired token")
	}
}

func TestJWTMiddleware_ClaimsExtraction(t *testing.T) {
	claims := freshClaims("4b8ac34e-3d9c-4c5a-9f68-2b7d0adbe6f1", "coordinator", "admin")
	claims.Name = "Rosa Marchetti"
	claims.Email = "rosa@clinic.example"

	err, _ := runJWT(t, "Bearer "+signTestToken(t, claims), "", func(c echo.Context) {
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != claims.Subject {
			t.Errorf("user id = %q, want %q", uid, claims.Subject)
		}
		if roles := RolesFromContext(ctx); len(roles) != 2 || roles[0] != "coordinator" || roles[1] != "admin" {
			t.Errorf("roles = %v, want [coordinator admin]", roles)
		}
		if name := UserNameFromContext(ctx); name != "Rosa Marchetti" {
			t.Errorf("name = %q", name)
		}
		if email := UserEmailFromContext(ctx); email != "rosa@clinic.example" {
			t.Errorf("email = %q", email)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	err, called := runJWT(t, "", "/health", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected public path to bypass auth")
	}
}

func TestDevAuthMiddleware_InjectsSyntheticUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	h := DevAuthMiddleware()(func(c echo.Context) error {
		called = true
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != DevUserID {
			t.Errorf("user id = %q, want %q", uid, DevUserID)
		}
		if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "admin" {
			t.Errorf("roles = %v, want [admin]", roles)
		}
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}
