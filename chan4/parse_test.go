package chan4

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComment(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		wantText   string
		wantQuotes []int64
	}{
		{
			name:     "given plain text, then returns it",
			html:     "hello world",
			wantText: "hello world",
		},
		{
			name:     "given line breaks and entities, then renders newlines and decodes",
			html:     "first<br>second &amp; third<br><br>fourth",
			wantText: "first\nsecond & third\n\nfourth",
		},
		{
			name:       "given quote links, then collects post numbers in order",
			html:       `<a href="#p123" class="quotelink">&gt;&gt;123</a><br><a href="/g/thread/100#p456" class="quotelink">&gt;&gt;456</a><br>agreed`,
			wantText:   ">>123\n>>456\nagreed",
			wantQuotes: []int64{123, 456},
		},
		{
			name:     "given greentext and word breaks, then keeps the text",
			html:     `<span class="quote">&gt;be me</span><br>loooo<wbr>ong`,
			wantText: ">be me\nloooong",
		},
		{
			name:     "given a board link, then it is not a quote",
			html:     `<a href="//boards.4chan.org/g/" class="quotelink">&gt;&gt;&gt;/g/</a>`,
			wantText: ">>>/g/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, quotes, err := parseComment(tt.html)

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantQuotes, quotes)
		})
	}
}

func TestParseReplyResult(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		want    ReplyResult
		wantErr bool
	}{
		{
			name: "given a reply success page, then returns thread and post",
			page: `<html><head><title>Post successful!</title></head><body><h1>Post successful!</h1><!-- thread:570368,no:570470 --></body></html>`,
			want: ReplyResult{Posted: true, ThreadNo: 570368, PostNo: 570470},
		},
		{
			name: "given a new thread success page, then the post is the thread",
			page: `<html><body><!-- thread:0,no:570500 --></body></html>`,
			want: ReplyResult{Posted: true, ThreadNo: 570500, PostNo: 570500},
		},
		{
			name: "given an error page, then returns the message",
			page: `<html><body><span id="errmsg" style="color: red;">Error: You seem to have mistyped the CAPTCHA.</span></body></html>`,
			want: ReplyResult{Error: "Error: You seem to have mistyped the CAPTCHA."},
		},
		{
			name:    "given an unrelated page, then fails",
			page:    `<html><body>Cloudflare</body></html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReplyResult(strings.NewReader(tt.page))

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errNoPostMarker)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuotedPost(t *testing.T) {
	no, ok := quotedPost("/g/thread/1#p42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), no)

	_, ok = quotedPost("//boards.4chan.org/g/")
	assert.False(t, ok)

	_, ok = quotedPost("#pabc")
	assert.False(t, ok)
}
