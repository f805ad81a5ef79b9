package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/portfoliovalue/backend/internal/api/middleware"
)

func TestValidateUUIDMiddleware(t *testing.T) {
	// serve sends a request carrying the given uuid URL param through the
	// middleware and reports whether the next handler ran.
	serve := func(t *testing.T, uuid string) (called bool, code int) {
		t.Helper()
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("uuid", uuid)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		w := httptest.NewRecorder()
		middleware.ValidateUUIDMiddleware(next).ServeHTTP(w, req)
		return called, w.Code
	}

	t.Run("passes through valid UUID", func(t *testing.T) {
		called, code := serve(t, "550e8400-e29b-41d4-a716-446655440000")

		if !called {
			t.Error("Expected next handler to be called")
		}
		if code != http.StatusOK {
			t.Errorf("Expected 200, got %d", code)
		}
	})

	t.Run("returns 400 for invalid UUID", func(t *testing.T) {
		called, code := serve(t, "invalid-id")

		if called {
			t.Error("Expected next handler NOT to be called")
		}
		if code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})

	t.Run("returns 400 for empty UUID", func(t *testing.T) {
		called, code := serve(t, "")

		if called {
			t.Error("Expected next handler NOT to be called")
		}
		if code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})
}
