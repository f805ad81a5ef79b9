package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
)

// newRequest builds a request carrying the given uuid URL param the way the
// router would, so handlers reading chi.URLParam(r, "uuid") see it.
func newRequest(method, target, uuid string, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rctx := chi.NewRouteContext()
	if uuid != "" {
		rctx.URLParams.Add("uuid", uuid)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
