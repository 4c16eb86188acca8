package chan4

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/kroma-labs/chanloader/httpcall"
	"github.com/kroma-labs/chanloader/httpclient"
)

var (
	// ErrInvalidBoard is returned for a board code that is not 1-10
	// lowercase letters or digits.
	ErrInvalidBoard = errors.New("chan4: invalid board")

	// ErrInvalidPost is returned for a non-positive post number.
	ErrInvalidPost = errors.New("chan4: invalid post number")

	// ErrEmptyReply is returned for a reply with neither comment nor file.
	ErrEmptyReply = errors.New("chan4: reply needs a comment or a file")
)

// Compile-time interface checks.
var (
	_ httpcall.Call[[]Board]       = (*BoardsCall)(nil)
	_ httpcall.Call[[]CatalogPage] = (*CatalogCall)(nil)
	_ httpcall.Call[Thread]        = (*ThreadCall)(nil)
	_ httpcall.Call[ReplyResult]   = (*ReplyCall)(nil)
)

// acceptJSON is the Setup shared by the read calls.
func acceptJSON(req *http.Request) error {
	req.Header.Set("Accept", "application/json")
	return nil
}

// BoardsCall loads the board list.
type BoardsCall struct {
	site *Site
}

// Boards returns a call loading /boards.json.
func (s *Site) Boards() *BoardsCall {
	return &BoardsCall{site: s}
}

func (c *BoardsCall) Target() (string, error)       { return c.site.APIBase + "/boards.json", nil }
func (c *BoardsCall) Site() string                  { return SiteID }
func (c *BoardsCall) Setup(req *http.Request) error { return acceptJSON(req) }

func (c *BoardsCall) Parse(resp *http.Response) ([]Board, error) {
	v, err := decode[boardsResponse](resp)
	if err != nil {
		return nil, err
	}
	return v.Boards, nil
}

// CatalogCall loads the catalog of a board.
type CatalogCall struct {
	site  *Site
	board string
}

// Catalog returns a call loading /{board}/catalog.json.
func (s *Site) Catalog(board string) (*CatalogCall, error) {
	if err := validBoard(board); err != nil {
		return nil, err
	}
	return &CatalogCall{site: s, board: board}, nil
}

func (c *CatalogCall) Target() (string, error) {
	return fmt.Sprintf("%s/%s/catalog.json", c.site.APIBase, c.board), nil
}

func (c *CatalogCall) Site() string                  { return SiteID }
func (c *CatalogCall) Setup(req *http.Request) error { return acceptJSON(req) }

func (c *CatalogCall) Parse(resp *http.Response) ([]CatalogPage, error) {
	pages, err := decode[[]CatalogPage](resp)
	if err != nil {
		return nil, err
	}
	for i := range pages {
		for j := range pages[i].Threads {
			if err := renderPost(&pages[i].Threads[j]); err != nil {
				return nil, err
			}
		}
	}
	return pages, nil
}

// ThreadCall loads a thread.
type ThreadCall struct {
	site  *Site
	board string
	no    int64
}

// Thread returns a call loading /{board}/thread/{no}.json. A deleted or
// archived-away thread fails with a not-found failure.
func (s *Site) Thread(board string, no int64) (*ThreadCall, error) {
	if err := validBoard(board); err != nil {
		return nil, err
	}
	if no <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPost, no)
	}
	return &ThreadCall{site: s, board: board, no: no}, nil
}

func (c *ThreadCall) Target() (string, error) {
	return fmt.Sprintf("%s/%s/thread/%d.json", c.site.APIBase, c.board, c.no), nil
}

func (c *ThreadCall) Site() string                  { return SiteID }
func (c *ThreadCall) Setup(req *http.Request) error { return acceptJSON(req) }

func (c *ThreadCall) Parse(resp *http.Response) (Thread, error) {
	t, err := decode[Thread](resp)
	if err != nil {
		return Thread{}, err
	}
	for i := range t.Posts {
		if err := renderPost(&t.Posts[i]); err != nil {
			return Thread{}, err
		}
	}
	return t, nil
}

// Reply is the content of a new post.
type Reply struct {
	Board string
	// ThreadNo is the thread replied to; zero starts a new thread.
	ThreadNo int64

	Name    string
	Options string
	Subject string
	Comment string

	File     []byte
	FileName string
	Spoiler  bool

	CaptchaChallenge string
	CaptchaResponse  string

	// Password allows deleting the post later. Generated when empty.
	Password string
}

// ReplyCall posts a reply or a new thread.
type ReplyCall struct {
	site  *Site
	reply Reply
}

// Reply returns a call posting r. Submit it with httpcall.WithProgress to
// follow the upload.
func (s *Site) Reply(r Reply) (*ReplyCall, error) {
	if err := validBoard(r.Board); err != nil {
		return nil, err
	}
	if r.ThreadNo < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPost, r.ThreadNo)
	}
	if r.Comment == "" && len(r.File) == 0 {
		return nil, ErrEmptyReply
	}
	if r.Password == "" {
		r.Password = uuid.NewString()
	}
	return &ReplyCall{site: s, reply: r}, nil
}

func (c *ReplyCall) Target() (string, error) {
	return fmt.Sprintf("%s/%s/post", c.site.SysBase, c.reply.Board), nil
}

func (c *ReplyCall) Site() string { return SiteID }

// Setup turns the request into a multipart POST of the reply form.
func (c *ReplyCall) Setup(req *http.Request) error {
	req.Method = http.MethodPost
	return c.form().Attach(req)
}

func (c *ReplyCall) form() *httpclient.MultipartForm {
	r := c.reply
	form := httpclient.NewMultipartForm()

	var resto, spoiler string
	if r.ThreadNo > 0 {
		resto = strconv.FormatInt(r.ThreadNo, 10)
	}
	if r.Spoiler {
		spoiler = "on"
	}

	fields := []struct{ name, value string }{
		{"mode", "regist"},
		{"resto", resto},
		{"pwd", r.Password},
		{"name", r.Name},
		{"email", r.Options},
		{"sub", r.Subject},
		{"com", r.Comment},
		{"spoiler", spoiler},
		{"t-challenge", r.CaptchaChallenge},
		{"t-response", r.CaptchaResponse},
	}
	for _, f := range fields {
		if f.value != "" {
			form.Field(f.name, f.value)
		}
	}

	if len(r.File) > 0 {
		name := r.FileName
		if name == "" {
			name = "file"
		}
		form.FileReader("upfile", name, bytes.NewReader(r.File))
	}
	return form
}

func (c *ReplyCall) Parse(resp *http.Response) (ReplyResult, error) {
	res, err := parseReplyResult(resp.Body)
	if err != nil {
		return ReplyResult{}, err
	}
	res.Password = c.reply.Password
	return res, nil
}
