package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/techimanshu8/flipkart/pkg/model"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	log := logrus.New()
	log.Out = io.Discard

	cases := []struct {
		err  error
		want int
	}{
		{errUnauthorized, http.StatusUnauthorized},
		{model.ErrNotFound, http.StatusNotFound},
		{errors.Wrap(model.ErrNotFound, "order o1"), http.StatusNotFound},
		{model.ErrForbidden, http.StatusForbidden},
		{model.ErrValidation, http.StatusBadRequest},
		{model.ErrInsufficientStock, http.StatusBadRequest},
		{model.ErrInvalidTransition, http.StatusBadRequest},
		{model.ErrInvalidOTP, http.StatusBadRequest},
		{model.ErrOTPExpired, http.StatusBadRequest},
		{model.ErrOTPLocked, http.StatusTooManyRequests},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/orders/o1", nil)
		writeError(rec, req, log, tc.err)
		assert.Equal(t, tc.want, rec.Code, "error: %v", tc.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	log := logrus.New()
	log.Out = io.Discard

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	writeError(rec, req, log, errors.New("dsn=root:hunter2@tcp(db)/x"))

	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	log := logrus.New()
	log.Out = io.Discard
	s := &Server{log: log}

	h := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
