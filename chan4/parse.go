package chan4

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	json "github.com/goccy/go-json"
)

// maxBody caps a response body. The largest catalogs are a few megabytes.
const maxBody = 32 << 20

var postMarker = regexp.MustCompile(`thread:(\d+),no:(\d+)`)

var errNoPostMarker = errors.New("no post marker or error message")

// decode reads a JSON body into v. The body is read in full first so a
// cut connection stays a read error and bad JSON stays a syntax error.
func decode[T any](resp *http.Response) (T, error) {
	var v T
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return v, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decode %T: %s", v, err)
	}
	return v, nil
}

// renderPost fills Comment and Quotes from the HTML comment of p and of
// its last replies.
func renderPost(p *Post) error {
	if p.HTML != "" {
		text, quotes, err := parseComment(p.HTML)
		if err != nil {
			return fmt.Errorf("post %d: %w", p.No, err)
		}
		p.Comment, p.Quotes = text, quotes
	}
	for i := range p.LastReplies {
		if err := renderPost(&p.LastReplies[i]); err != nil {
			return err
		}
	}
	return nil
}

// parseComment renders comment HTML to plain text and collects the post
// numbers of its quote links.
//
//	parseComment(`<a href="#p123" class="quotelink">&gt;&gt;123</a><br>hi`)
//	// ">>123\nhi", []int64{123}
func parseComment(html string) (string, []int64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("parse comment: %w", err)
	}

	var quotes []int64
	doc.Find("a.quotelink").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if no, ok := quotedPost(href); ok {
			quotes = append(quotes, no)
		}
	})

	doc.Find("wbr").Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	return strings.TrimSpace(doc.Text()), quotes, nil
}

// quotedPost extracts the post number from "#p123" or "/g/thread/1#p123".
func quotedPost(href string) (int64, bool) {
	i := strings.LastIndex(href, "#p")
	if i < 0 {
		return 0, false
	}
	no, err := strconv.ParseInt(href[i+2:], 10, 64)
	if err != nil {
		return 0, false
	}
	return no, true
}

// parseReplyResult reads the page returned after posting. Success pages
// carry a "thread:N,no:M" marker; rejections an #errmsg element.
func parseReplyResult(body io.Reader) (ReplyResult, error) {
	page, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return ReplyResult{}, fmt.Errorf("read reply page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ReplyResult{}, fmt.Errorf("parse reply page: %w", err)
	}

	if msg := strings.TrimSpace(doc.Find("#errmsg").First().Text()); msg != "" {
		return ReplyResult{Error: msg}, nil
	}

	m := postMarker.FindSubmatch(page)
	if m == nil {
		return ReplyResult{}, fmt.Errorf("reply page: %w", errNoPostMarker)
	}

	threadNo, _ := strconv.ParseInt(string(m[1]), 10, 64)
	postNo, _ := strconv.ParseInt(string(m[2]), 10, 64)
	if threadNo == 0 {
		// A new thread reports thread:0; the post is the thread.
		threadNo = postNo
	}
	return ReplyResult{Posted: true, ThreadNo: threadNo, PostNo: postNo}, nil
}
