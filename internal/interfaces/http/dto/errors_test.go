package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusConflict},
		{ErrCodeSubmissionInFlight, http.StatusConflict},
		{ErrCodeEmptyCart, http.StatusUnprocessableEntity},
		{ErrCodeSystemBusy, http.StatusServiceUnavailable},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeTooManyRequests, http.StatusTooManyRequests},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		pageSize  int
		wantPages int
	}{
		{"exact pages", 40, 20, 2},
		{"partial last page", 41, 20, 3},
		{"empty", 0, 20, 0},
		{"zero page size", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]string{}, tt.total, 1, tt.pageSize)
			require.NotNil(t, resp.Meta)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	t.Run("omits empty data and details", func(t *testing.T) {
		body, err := json.Marshal(NewErrorResponseWithRequestID(ErrCodeSystemBusy, "busy", "req-1"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":false,"error":{"code":"SYSTEM_BUSY","message":"busy","request_id":"req-1"}}`, string(body))
	})

	t.Run("validation carries field details", func(t *testing.T) {
		resp := NewValidationErrorResponse("Vui lòng kiểm tra lại thông tin", "", map[string]string{"phone": "Số điện thoại không hợp lệ"})
		body, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"Vui lòng kiểm tra lại thông tin","details":{"phone":"Số điện thoại không hợp lệ"}}}`, string(body))
	})
}
