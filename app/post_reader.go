package app

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// maxLineBytes bounds one NDJSON line; archived selftexts can be large
const maxLineBytes = 16 << 20

// RawPost is one archived submission
type RawPost struct {
	ID          string      `json:"id"`
	Author      string      `json:"author"`
	CreatedUTC  epochSecond `json:"created_utc"`
	Domain      string      `json:"domain"`
	Subreddit   string      `json:"subreddit"`
	Title       string      `json:"title"`
	Selftext    string      `json:"selftext"`
	Score       int64       `json:"score"`
	NumComments int64       `json:"num_comments"`
	UpvoteRatio float64     `json:"upvote_ratio"`

	// Metadata is every other field of the line
	Metadata json.RawMessage `json:"-"`
}

// epochSecond accepts created_utc as a JSON number or a quoted number;
// dumps from different years use both
type epochSecond int64

func (e *epochSecond) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("missing created_utc")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid created_utc %q", s)
	}
	*e = epochSecond(int64(f))
	return nil
}

var knownFields = []string{"id", "author", "created_utc", "domain", "subreddit", "title", "selftext", "score", "num_comments", "upvote_ratio"}

// MalformedLineError reports an input line that could not be decoded
type MalformedLineError struct {
	Line int
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed post on line %d: %v", e.Line, e.Err)
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

// PostReader streams posts from NDJSON input, one post per line
type PostReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewPostReader reads posts from r
func NewPostReader(r io.Reader) *PostReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &PostReader{scanner: scanner}
}

// Next returns the next post. It returns io.EOF at the end of input and a
// *MalformedLineError for a line that is not a usable post; reading may
// continue after a malformed line.
func (pr *PostReader) Next() (*RawPost, error) {
	for pr.scanner.Scan() {
		pr.line++
		line := bytes.TrimSpace(pr.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		post, err := decodePost(line)
		if err != nil {
			return nil, &MalformedLineError{Line: pr.line, Err: err}
		}
		return post, nil
	}
	if err := pr.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read posts: %w", err)
	}
	return nil, io.EOF
}

// Line returns the number of the last line read
func (pr *PostReader) Line() int {
	return pr.line
}

func decodePost(line []byte) (*RawPost, error) {
	var post RawPost
	if err := json.Unmarshal(line, &post); err != nil {
		return nil, err
	}
	if post.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if post.CreatedUTC == 0 {
		return nil, fmt.Errorf("missing created_utc")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, err
	}
	for _, k := range knownFields {
		delete(fields, k)
	}
	if len(fields) > 0 {
		meta, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		post.Metadata = meta
	}
	return &post, nil
}

// OpenPosts opens an NDJSON file, decompressing it when the name ends in
// .zst
func OpenPosts(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open posts: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	// Archive dumps are written with a long window
	dec, err := zstd.NewReader(f, zstd.WithDecoderMaxWindow(1<<31))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	return &zstdFile{Decoder: dec, f: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}
