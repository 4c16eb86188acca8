package chan4

// Board is an entry of boards.json.
type Board struct {
	Board           string `json:"board"`
	Title           string `json:"title"`
	WorkSafe        int    `json:"ws_board"`
	PerPage         int    `json:"per_page"`
	Pages           int    `json:"pages"`
	MaxFilesize     int64  `json:"max_filesize"`
	MaxWebmFilesize int64  `json:"max_webm_filesize"`
	MaxCommentChars int    `json:"max_comment_chars"`
	BumpLimit       int    `json:"bump_limit"`
	ImageLimit      int    `json:"image_limit"`
	Description     string `json:"meta_description"`
	SpoilersEnabled int    `json:"spoilers"`
	IsArchived      int    `json:"is_archived"`
	Cooldowns       struct {
		Threads int `json:"threads"`
		Replies int `json:"replies"`
		Images  int `json:"images"`
	} `json:"cooldowns"`
}

// IsWorkSafe reports whether the board is blue.
func (b Board) IsWorkSafe() bool {
	return b.WorkSafe == 1
}

type boardsResponse struct {
	Boards []Board `json:"boards"`
}

// Post is a single post of a thread or the opening post of a catalog entry.
type Post struct {
	No          int64  `json:"no"`
	Resto       int64  `json:"resto"`
	Sticky      int    `json:"sticky,omitempty"`
	Closed      int    `json:"closed,omitempty"`
	Archived    int    `json:"archived,omitempty"`
	Now         string `json:"now"`
	Time        int64  `json:"time"`
	Name        string `json:"name,omitempty"`
	Trip        string `json:"trip,omitempty"`
	ID          string `json:"id,omitempty"`
	Capcode     string `json:"capcode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryName string `json:"country_name,omitempty"`
	Subject     string `json:"sub,omitempty"`
	HTML        string `json:"com,omitempty"`

	Tim         int64  `json:"tim,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Ext         string `json:"ext,omitempty"`
	Fsize       int64  `json:"fsize,omitempty"`
	MD5         string `json:"md5,omitempty"`
	W           int    `json:"w,omitempty"`
	H           int    `json:"h,omitempty"`
	TnW         int    `json:"tn_w,omitempty"`
	TnH         int    `json:"tn_h,omitempty"`
	FileDeleted int    `json:"filedeleted,omitempty"`
	Spoiler     int    `json:"spoiler,omitempty"`

	Replies       int    `json:"replies,omitempty"`
	Images        int    `json:"images,omitempty"`
	BumpLimit     int    `json:"bumplimit,omitempty"`
	ImageLimit    int    `json:"imagelimit,omitempty"`
	SemanticURL   string `json:"semantic_url,omitempty"`
	OmittedPosts  int    `json:"omitted_posts,omitempty"`
	OmittedImages int    `json:"omitted_images,omitempty"`
	LastReplies   []Post `json:"last_replies,omitempty"`

	// Comment is HTML rendered to plain text.
	Comment string `json:"comment,omitempty"`
	// Quotes lists the post numbers this post links to, in order.
	Quotes []int64 `json:"quotes,omitempty"`
}

// IsOP reports whether the post opens its thread.
func (p Post) IsOP() bool {
	return p.Resto == 0
}

// HasFile reports whether a file is attached and not deleted.
func (p Post) HasFile() bool {
	return p.Tim != 0 && p.FileDeleted == 0
}

// Thread is the content of /{board}/thread/{no}.json.
type Thread struct {
	Posts []Post `json:"posts"`
}

// OP returns the opening post, or false for an empty thread.
func (t Thread) OP() (Post, bool) {
	if len(t.Posts) == 0 {
		return Post{}, false
	}
	return t.Posts[0], true
}

// CatalogPage is one page of /{board}/catalog.json.
type CatalogPage struct {
	Page    int    `json:"page"`
	Threads []Post `json:"threads"`
}

// ReplyResult is the outcome of posting. The server reports rejections
// (bad captcha, flood detection) in the page rather than with a status code,
// so a rejected post is still a successful call.
type ReplyResult struct {
	Posted   bool   `json:"posted"`
	ThreadNo int64  `json:"thread_no,omitempty"`
	PostNo   int64  `json:"post_no,omitempty"`
	Error    string `json:"error,omitempty"`
	Password string `json:"password,omitempty"`
}
