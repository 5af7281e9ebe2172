package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	wrapped := fmt.Errorf("handler: %w", TooManyRequestsError("slow down").WithParam("limit", 5).WithRetryAfter(1500*time.Millisecond))
	require.NoError(t, AppErrorResponse(c, wrapped))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get(echo.HeaderRetryAfter))
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, CodeRateLimited, body.Data[0].Code)
	assert.EqualValues(t, 5, body.Data[0].Params["limit"])
}

func TestAppErrorResponseHidesPlainErrors(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	require.NoError(t, AppErrorResponse(c, errors.New("dsn=secret")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestStatusAppErrorCodes(t *testing.T) {
	assert.Equal(t, CodeNotFound, NotFoundErrorf("alert %s", "x").Code)
	assert.Equal(t, CodeUnprocessable, UnprocessableError("bad step").Code)
	assert.Equal(t, CodeInternal, NewStatusAppError(http.StatusTeapot, "tea").Code)

	err := InternalError("boom").WithError(errors.New("cause"))
	assert.EqualError(t, err, "ERR_INTERNAL boom: cause")
}

type listRequest struct {
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=100"`
	Symbol string `json:"symbol" validate:"required"`
}

func TestReadAndValidateRequest(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{"symbol":"BTCUSDT"}`)
	req := &listRequest{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, 20, req.Limit)

	c, _ = newContext(http.MethodPost, "/", `{}`)
	errs := ReadAndValidateRequest(c, &listRequest{})
	require.Len(t, errs, 1)
	assert.Equal(t, "symbol", errs[0].Field)
}

type pageRequest struct {
	Limit int `query:"limit" default:"20" validate:"gte=1,lte=100"`
}

func TestReadAndValidateRequestKeepsExplicitZero(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/?limit=0", "")
	errs := ReadAndValidateRequest(c, &pageRequest{})
	require.Len(t, errs, 1)
	assert.Equal(t, "limit", errs[0].Field)

	c, _ = newContext(http.MethodGet, "/?limit=7", "")
	req := &pageRequest{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, 7, req.Limit)

	c, _ = newContext(http.MethodGet, "/", "")
	req = &pageRequest{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, 20, req.Limit)
}
