package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-cliproom/internal/store"
	"github.com/npezzotti/go-cliproom/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	tcases := []struct {
		name  string
		value any
		want  string
	}{
		{name: "error value", value: errors.New("test panic"), want: "panic: test panic"},
		{name: "string value", value: "plain panic", want: "panic: plain panic"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			logger, buf := testutil.BufferedLogger(t)
			app := &CliproomApp{log: logger}

			panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tc.value)
			})

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			handler := app.errorHandler(panicHandler)
			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Equal(t, "close", rr.Header().Get("Connection"))
			assert.JSONEq(t, `{"status_code":500,"message":"internal server error"}`, rr.Body.String())
			assert.Contains(t, buf.String(), tc.want)
		})
	}
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &CliproomApp{log: testutil.TestLogger(t)}

	// simple handler that does not panic
	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_accessLog(t *testing.T) {
	logger, buf := testutil.BufferedLogger(t)
	app := &CliproomApp{log: logger}

	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/rooms/ABC123", nil)
	app.accessLog(teapot).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code, "expected response to pass through")
	out := buf.String()
	assert.Contains(t, out, "msg=request")
	assert.Contains(t, out, "method=POST")
	assert.Contains(t, out, "path=/api/rooms/ABC123")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=15")
}

func Test_storeError(t *testing.T) {
	tcases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "room not found", err: store.ErrRoomNotFound, status: http.StatusNotFound},
		{name: "item not found", err: fmt.Errorf("%w: item-1", store.ErrItemNotFound), status: http.StatusNotFound},
		{name: "already exists", err: store.ErrAlreadyExists, status: http.StatusConflict},
		{name: "validation", err: fmt.Errorf("%w: content is required", store.ErrValidationFailed), status: http.StatusBadRequest},
		{name: "other", err: errors.New("disk on fire"), status: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := storeError(tc.err)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.ErrorIs(t, apiErr, tc.err, "expected the store error to be wrapped")
		})
	}

	assert.Equal(t, "internal server error", storeError(errors.New("secret detail")).Message,
		"expected internal errors not to leak details")
}
