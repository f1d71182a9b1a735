package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "homechat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(err error) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	FromError(c, err)

	var body Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestFromError_MapsCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperrors.ErrInvalidToken, http.StatusUnauthorized},
		{apperrors.ErrNotChannelMember, http.StatusForbidden},
		{apperrors.ErrChannelNotFound, http.StatusNotFound},
		{apperrors.ErrMessageTooLong, http.StatusUnprocessableEntity},
		{apperrors.ErrAlreadyMember, http.StatusConflict},
		{apperrors.Internal("persist", errors.New("disk")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w, body := serve(tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Equal(t, tc.status, body.Code)
	}
}

func TestFromError_ValidationIncludesFields(t *testing.T) {
	_, body := serve(apperrors.ErrMessageRequired)
	require.NotNil(t, body.Fields)
	assert.Equal(t, "Message content is required", body.Fields["content"])
	assert.Equal(t, string(apperrors.CodeValidationFailed), body.Error)
}

func TestFromError_PlainErrorHidesDetail(t *testing.T) {
	w, body := serve(errors.New("dial tcp 10.0.0.1:3306: refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}
