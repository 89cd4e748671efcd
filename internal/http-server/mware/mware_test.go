package mware_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadimanwar794-eng/nst-core/internal/http-server/mware"
	appjwt "github.com/nadimanwar794-eng/nst-core/internal/lib/jwt"
)

type mockJWTMaker struct {
	ParseFunc func(tokenStr string) (*appjwt.SessionClaims, error)
}

func (m *mockJWTMaker) GenerateToken(uid, username, role, impersonator string) (string, error) {
	return "", nil
}

func (m *mockJWTMaker) ParseToken(tokenStr string) (*appjwt.SessionClaims, error) {
	return m.ParseFunc(tokenStr)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func TestJWTMiddleware(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		maker := &mockJWTMaker{
			ParseFunc: func(tokenStr string) (*appjwt.SessionClaims, error) {
				require.Equal(t, "valid-token", tokenStr)
				return &appjwt.SessionClaims{UID: "u1", Role: "STUDENT"}, nil
			},
		}

		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			uid, ok := mware.UID(r.Context())
			require.True(t, ok)
			assert.Equal(t, "u1", uid)
			assert.False(t, mware.IsImpersonated(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler := mware.JWTMiddleware(maker, makeLogger())(next)
		handler.ServeHTTP(w, req)

		assert.True(t, nextCalled, "next handler must be called")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("impersonated session flagged", func(t *testing.T) {
		maker := &mockJWTMaker{
			ParseFunc: func(tokenStr string) (*appjwt.SessionClaims, error) {
				return &appjwt.SessionClaims{UID: "u1", Role: "STUDENT", Impersonator: "admin-1"}, nil
			},
		}

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, mware.IsImpersonated(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		mware.JWTMiddleware(maker, makeLogger())(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing Authorization header", func(t *testing.T) {
		maker := &mockJWTMaker{}
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not be called on missing header")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		handler := mware.JWTMiddleware(maker, makeLogger())(next)
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "missing or invalid authorization header")
	})

	t.Run("invalid or expired token", func(t *testing.T) {
		maker := &mockJWTMaker{
			ParseFunc: func(tokenStr string) (*appjwt.SessionClaims, error) {
				return nil, errors.New("token expired")
			},
		}
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not be called on invalid token")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()

		handler := mware.JWTMiddleware(maker, makeLogger())(next)
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or expired token")
	})
}
