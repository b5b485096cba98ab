package requests

import (
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// GetRequestId returns the caller supplied request id, or generates one and stores it on the request
func GetRequestId(req *http.Request) string {
	requestID := req.Header.Get(requestIDHeader)
	if requestID != "" {
		return requestID
	}
	requestID = uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	return requestID
}
