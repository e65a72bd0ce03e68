// Package httpclient builds the HTTP client the remote backend talks to
// its server with.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/atomdb/errors"
)

// MaxRedirects bounds the redirects a client follows.
const MaxRedirects = 5

// ParseBaseURL checks a server base URL: http or https, a host, and no
// userinfo. Trailing slashes are dropped.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, errors.NewInvalidRequestError("invalid server url %q: %v", raw, err)
	}
	if err := validate(u); err != nil {
		return nil, errors.Wrapf(err, "server url %q", raw)
	}
	return u, nil
}

func validate(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.NewInvalidRequestError("scheme %q not allowed (allowed: http, https)", u.Scheme)
	}
	if u.User != nil {
		return errors.NewInvalidRequestError("url must not carry credentials")
	}
	if u.Hostname() == "" {
		return errors.NewInvalidRequestError("url missing hostname")
	}
	return nil
}

// New returns a pooled client bound to base. Redirects are followed only
// within base's scheme and host.
func New(base *url.URL, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return errors.Newf("stopped after %d redirects", MaxRedirects)
			}
			if err := validate(req.URL); err != nil {
				return errors.Wrap(err, "redirect blocked")
			}
			if !strings.EqualFold(req.URL.Scheme, base.Scheme) || !strings.EqualFold(req.URL.Host, base.Host) {
				return errors.Newf("redirect blocked: %s leaves %s", req.URL.Redacted(), base.Host)
			}
			return nil
		},
	}
}
