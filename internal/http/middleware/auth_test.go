package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	am := NewAuthMiddleware(log, testSecret)

	r := gin.New()
	r.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return r
}

func signToken(t *testing.T, secret string, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func doRequest(r *gin.Engine, header string, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected"+query, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	r := newAuthRouter(t)
	userID := uuid.New()
	token := signToken(t, testSecret, userID.String(), time.Now().Add(time.Hour))

	w := doRequest(r, "Bearer "+token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != userID.String() {
		t.Fatalf("handler saw user %q, want %q", w.Body.String(), userID)
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	r := newAuthRouter(t)
	token := signToken(t, testSecret, uuid.New().String(), time.Now().Add(time.Hour))

	// EventSource cannot set headers, so the token can ride the query string.
	w := doRequest(r, "", "?token="+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	r := newAuthRouter(t)
	if w := doRequest(r, "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireAuthRejectsWrongSecret(t *testing.T) {
	r := newAuthRouter(t)
	token := signToken(t, "other-secret", uuid.New().String(), time.Now().Add(time.Hour))

	if w := doRequest(r, "Bearer "+token, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	r := newAuthRouter(t)
	token := signToken(t, testSecret, uuid.New().String(), time.Now().Add(-time.Hour))

	if w := doRequest(r, "Bearer "+token, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireAuthRejectsNonUUIDSubject(t *testing.T) {
	r := newAuthRouter(t)
	token := signToken(t, testSecret, "not-a-uuid", time.Now().Add(time.Hour))

	if w := doRequest(r, "Bearer "+token, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireAuthRejectsUnsignedAlg(t *testing.T) {
	r := newAuthRouter(t)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if w := doRequest(r, "Bearer "+s, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}
