package requests

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGetRequestIdKeepsCallerID(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	require.Equal(t, "abc-123", GetRequestId(req))
}

func TestGetRequestIdGeneratesOnce(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	id := GetRequestId(req)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, id, GetRequestId(req))
}
