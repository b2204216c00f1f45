package app

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const RequestIdHeader = "X-Request-Id"

// RequestIdTransport tags every outgoing request with a fresh X-Request-Id,
// unless the caller set one, and logs its outcome.
type RequestIdTransport struct {
	Base http.RoundTripper
}

func (t *RequestIdTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	out := req
	requestId := req.Header.Get(RequestIdHeader)
	if requestId == "" {
		requestId = uuid.NewString()
		out = req.Clone(req.Context())
		out.Header.Set(RequestIdHeader, requestId)
	}

	logger := log.WithFields(log.Fields{
		"requestId": requestId,
		"method":    req.Method,
		"path":      req.URL.Path,
	})
	start := time.Now()
	resp, err := base.RoundTrip(out)
	if err != nil {
		logger.Debugf("request failed after %s: %v", time.Since(start), err)
		return nil, err
	}
	logger.WithField("status", resp.StatusCode).Debugf("request completed in %s", time.Since(start))
	return resp, nil
}
