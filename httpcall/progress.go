package httpcall

import (
	"io"
	"net/http"
)

// ProgressListener observes the upload of a request body. OnProgress is
// called from the transport goroutine after every chunk; total is -1 when
// the body length is unknown.
type ProgressListener interface {
	OnProgress(written, total int64)
}

// ProgressFunc adapts a function to ProgressListener.
type ProgressFunc func(written, total int64)

// OnProgress implements ProgressListener.
func (f ProgressFunc) OnProgress(written, total int64) {
	f(written, total)
}

// progressReader reports every read to the listener.
type progressReader struct {
	rc       io.ReadCloser
	total    int64
	written  int64
	listener ProgressListener
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.rc.Read(b)
	if n > 0 {
		p.written += int64(n)
		p.listener.OnProgress(p.written, p.total)
	}
	return n, err
}

func (p *progressReader) Close() error {
	return p.rc.Close()
}

// trackProgress wraps the body of req so l sees the upload. Requests
// without a body are left untouched.
func trackProgress(req *http.Request, l ProgressListener) {
	if l == nil || req.Body == nil || req.Body == http.NoBody {
		return
	}

	total := req.ContentLength
	if total <= 0 {
		total = -1
	}

	req.Body = &progressReader{rc: req.Body, total: total, listener: l}
	if getBody := req.GetBody; getBody != nil {
		req.GetBody = func() (io.ReadCloser, error) {
			rc, err := getBody()
			if err != nil {
				return nil, err
			}
			return &progressReader{rc: rc, total: total, listener: l}, nil
		}
	}
}
