package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/minichain/foundation/validate"
	"github.com/ardanlabs/minichain/foundation/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleGroupAndParams(t *testing.T) {
	shutdown := make(chan os.Signal, 1)

	var order []string
	mw := func(name string) web.Middleware {
		return func(handler web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return handler(ctx, w, r)
			}
		}
	}

	app := web.NewApp(shutdown, mw("app"))

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v, err := web.GetValues(ctx)
		if err != nil {
			return err
		}
		resp := map[string]string{
			"index":   web.Param(r, "index"),
			"traceid": v.TraceID,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
	app.Handle(http.MethodGet, "v1", "/blocks/:index", h, mw("route"))

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/blocks/7", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"index":"7"`)
	assert.Equal(t, []string{"app", "route"}, order)
}

func TestShutdownSignal(t *testing.T) {
	shutdown := make(chan os.Signal, 1)
	app := web.NewApp(shutdown)

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.NewShutdownError("integrity issue")
	}
	app.Handle(http.MethodGet, "", "/fail", h)

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Len(t, shutdown, 1)
	assert.True(t, web.IsShutdown(web.NewShutdownError("x")))
}

func TestDecode(t *testing.T) {
	type request struct {
		Draws int `json:"draws" validate:"required,min=1"`
	}

	var req request
	err := web.Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"draws":5}`)), &req)
	require.NoError(t, err)
	assert.Equal(t, 5, req.Draws)

	err = web.Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"draws":0}`)), &req)
	assert.True(t, validate.IsFieldErrors(err))

	err = web.Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`)), &req)
	assert.Error(t, err)

	var list []int
	err = web.Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[1,2]`)), &list)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, list)
}

func TestRespondNoContent(t *testing.T) {
	app := web.NewApp(make(chan os.Signal, 1))
	app.Handle(http.MethodGet, "", "/empty", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", web.GetTraceID(context.Background()))
}
