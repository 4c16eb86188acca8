// Package chan4 implements the 4chan site: its endpoints, JSON models and
// the call descriptors submitted through httpcall.
package chan4

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/kroma-labs/chanloader/httpcall"
)

// SiteID identifies 4chan in an httpcall.Registry.
const SiteID = "4chan"

// Default hosts.
const (
	DefaultAPIBase    = "https://a.4cdn.org"
	DefaultSysBase    = "https://sys.4chan.org"
	DefaultBoardsBase = "https://boards.4chan.org"
	DefaultMediaBase  = "https://i.4cdn.org"
)

var boardPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// Site holds the endpoints of the site and the optional pass. It is
// read-only once created and implements httpcall.RequestModifier.
type Site struct {
	APIBase    string
	SysBase    string
	BoardsBase string
	MediaBase  string

	// PassID is the pass_id cookie obtained by logging in with a Pass.
	// Empty means no pass.
	PassID string
}

// Option configures a Site.
type Option func(*Site)

// WithAPIBase overrides the read API host, e.g. for a test server.
func WithAPIBase(base string) Option {
	return func(s *Site) {
		s.APIBase = strings.TrimRight(base, "/")
	}
}

// WithSysBase overrides the posting host.
func WithSysBase(base string) Option {
	return func(s *Site) {
		s.SysBase = strings.TrimRight(base, "/")
	}
}

// WithPassID sets the pass_id cookie sent with every request.
func WithPassID(id string) Option {
	return func(s *Site) {
		s.PassID = id
	}
}

// NewSite returns the site with default hosts.
func NewSite(opts ...Option) *Site {
	s := &Site{
		APIBase:    DefaultAPIBase,
		SysBase:    DefaultSysBase,
		BoardsBase: DefaultBoardsBase,
		MediaBase:  DefaultMediaBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the site's modifier to r.
func (s *Site) Register(r *httpcall.Registry) {
	r.Register(SiteID, s)
}

// ModifyRequest implements httpcall.RequestModifier. It adds the pass
// cookies, and the Origin and Referer the posting host checks.
func (s *Site) ModifyRequest(req *http.Request) error {
	if s.PassID != "" {
		req.AddCookie(&http.Cookie{Name: "pass_id", Value: s.PassID})
		req.AddCookie(&http.Cookie{Name: "pass_enabled", Value: "1"})
	}

	if req.Method == http.MethodPost && s.isSysHost(req.URL) {
		req.Header.Set("Origin", s.BoardsBase)
		req.Header.Set("Referer", s.BoardsBase+"/")
	}
	return nil
}

func (s *Site) isSysHost(u *url.URL) bool {
	sys, err := url.Parse(s.SysBase)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, sys.Host)
}

// ImageURL returns the full-size file URL of p.
func (s *Site) ImageURL(board string, p Post) string {
	return fmt.Sprintf("%s/%s/%d%s", s.MediaBase, board, p.Tim, p.Ext)
}

// ThumbnailURL returns the thumbnail URL of p.
func (s *Site) ThumbnailURL(board string, p Post) string {
	return fmt.Sprintf("%s/%s/%ds.jpg", s.MediaBase, board, p.Tim)
}

// ThreadURL returns the browser URL of a thread.
func (s *Site) ThreadURL(board string, no int64) string {
	return fmt.Sprintf("%s/%s/thread/%d", s.BoardsBase, board, no)
}

func validBoard(board string) error {
	if !boardPattern.MatchString(board) {
		return fmt.Errorf("%w: %q", ErrInvalidBoard, board)
	}
	return nil
}
