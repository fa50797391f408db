package test_helpers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// ChaosMode defines the type of fault to inject
type ChaosMode int

const (
	// ChaosNone forwards requests untouched
	ChaosNone ChaosMode = iota

	// ChaosConnectionReset fails before any response is received
	ChaosConnectionReset

	// ChaosDNSFailure fails with a lookup error
	ChaosDNSFailure

	// ChaosPartialRead returns the real response but breaks the body mid-read
	ChaosPartialRead

	// ChaosEmptyBody answers 200 with no body
	ChaosEmptyBody

	// ChaosOversizedBody answers 200 with a body larger than any sane listing
	ChaosOversizedBody
)

// ChaosTransport wraps an http.RoundTripper and injects faults into requests
// whose path starts with PathPrefix. An empty prefix targets every request.
type ChaosTransport struct {
	Base       http.RoundTripper
	Mode       ChaosMode
	PathPrefix string

	// OversizedBytes is the body size used by ChaosOversizedBody.
	OversizedBytes int

	injected atomic.Int64
}

// NewChaosClient returns an http.Client whose transport injects mode into
// requests under pathPrefix.
func NewChaosClient(mode ChaosMode, pathPrefix string) (*http.Client, *ChaosTransport) {
	ct := &ChaosTransport{Base: http.DefaultTransport, Mode: mode, PathPrefix: pathPrefix}
	return &http.Client{Transport: ct}, ct
}

// Injected reports how many requests were tampered with.
func (c *ChaosTransport) Injected() int64 {
	return c.injected.Load()
}

// RoundTrip implements http.RoundTripper interface
func (c *ChaosTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := c.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if c.Mode == ChaosNone || !strings.HasPrefix(req.URL.Path, c.PathPrefix) {
		return base.RoundTrip(req)
	}
	c.injected.Add(1)

	switch c.Mode {
	case ChaosConnectionReset:
		return nil, errors.New("connection reset by peer")

	case ChaosDNSFailure:
		return nil, &DNSError{Err: "no such host", Server: "127.0.0.53"}

	case ChaosPartialRead:
		resp, err := base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		resp.Body = &partialReadCloser{reader: bytes.NewReader(bodyBytes[:len(bodyBytes)/2])}
		return resp, nil

	case ChaosEmptyBody:
		return syntheticResponse(req, http.StatusOK, nil), nil

	case ChaosOversizedBody:
		size := c.OversizedBytes
		if size <= 0 {
			size = 8 << 20
		}
		return syntheticResponse(req, http.StatusOK, bytes.Repeat([]byte("A"), size)), nil

	default:
		return base.RoundTrip(req)
	}
}

func syntheticResponse(req *http.Request, status int, body []byte) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
		Header:        make(http.Header),
	}
}

// partialReadCloser yields what it has and then fails instead of reporting EOF.
type partialReadCloser struct {
	reader io.Reader
}

func (p *partialReadCloser) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if errors.Is(err, io.EOF) {
		return n, errors.New("connection reset during read")
	}
	return n, err
}

func (p *partialReadCloser) Close() error {
	return nil
}

// DNSError simulates DNS lookup failures
type DNSError struct {
	Err    string
	Server string
}

func (e *DNSError) Error() string {
	return fmt.Sprintf("lookup failed: %s (server: %s)", e.Err, e.Server)
}

func (e *DNSError) Temporary() bool {
	return true
}

func (e *DNSError) Timeout() bool {
	return false
}
