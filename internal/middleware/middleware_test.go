package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/installment-service/internal/config"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func signed(t *testing.T, secret, subject, audience string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	protected := AuthMiddleware(cfg, quietLogger(), "staff")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := Subject(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(strconv.FormatInt(id, 10)))
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + signed(t, "secret", "42", "staff", time.Hour), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no bearer", signed(t, "secret", "42", "staff", time.Hour), http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, "other", "42", "staff", time.Hour), http.StatusUnauthorized},
		{"wrong audience", "Bearer " + signed(t, "secret", "42", "mobile", time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + signed(t, "secret", "42", "staff", -time.Minute), http.StatusUnauthorized},
		{"no subject", "Bearer " + signed(t, "secret", "", "staff", time.Hour), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "42", rec.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, seen)

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, given)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, given, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestSubjectWithoutToken(t *testing.T) {
	_, ok := Subject(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
