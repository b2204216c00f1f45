package session

import (
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Transport authorizes requests with the session credential. A request answered
// with 401 joins the single refresh flight and is retried once with the new credential.
// Login, registration and refresh requests must not go through it.
type Transport struct {
	Session *Manager
	Base    http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	token, gen, err := t.Session.acquire(ctx)
	if err != nil {
		closeBody(req)
		return nil, err
	}

	resp, err := t.send(req, token, false)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.GetBody == nil {
		log.Warnf("%s %s: body cannot be replayed, not retrying after 401", req.Method, req.URL.Path)
		return resp, nil
	}
	drain(resp)

	log.Debugf("%s %s: 401, waiting for refreshed credentials", req.Method, req.URL.Path)
	token, _, err = t.Session.refreshFrom(ctx, gen)
	if err != nil {
		return nil, err
	}
	return t.send(req, token, true)
}

// send never mutates the caller's request.
func (t *Transport) send(req *http.Request, token *oauth2.Token, replay bool) (*http.Response, error) {
	out := req.Clone(req.Context())
	if replay && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	token.SetAuthHeader(out)
	return t.base().RoundTrip(out)
}

// NewClient returns an *http.Client whose requests carry the session credential.
func NewClient(session *Manager, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{Session: session, Base: base}}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
