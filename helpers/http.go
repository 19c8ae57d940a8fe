package helpers

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"sync"
)

// MockHTTP is http.RoundTripper with canned response. Requests are recorded.
type MockHTTP struct {
	// default "HTTP/1.0 200 OK"
	Header []byte
	Body   []byte
	Err    error

	mu   sync.Mutex
	reqs []MockRequest
}

type MockRequest struct {
	Method string
	URL    string
	Body   []byte
}

func (m *MockHTTP) RoundTrip(req *http.Request) (*http.Response, error) {
	mr := MockRequest{Method: req.Method, URL: req.URL.String()}
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		mr.Body = b
	}
	m.mu.Lock()
	m.reqs = append(m.reqs, mr)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	header := m.Header
	if header == nil {
		header = []byte("HTTP/1.0 200 OK\r\n\r\n")
	}
	rb := make([]byte, 0, len(header)+len(m.Body))
	rb = append(rb, header...)
	rb = append(rb, m.Body...)
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(rb)), req)
}

func (m *MockHTTP) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockRequest(nil), m.reqs...)
}
