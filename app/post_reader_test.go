package app

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostReader(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a1","author":"x","created_utc":1609772400,"domain":"self.stocks","title":"t1","selftext":"b","score":5,"url":"https://reddit.com/a1","over_18":false}`,
		``,
		`{"id":"a2","created_utc":"1609772401","title":"t2"}`,
		`{not json`,
		`{"title":"no id","created_utc":1}`,
		`{"id":"a3","created_utc":1609772402.0,"title":"t3"}`,
		`{"id":"a4","title":"no time"}`,
	}, "\n")

	r := NewPostReader(strings.NewReader(input))

	post, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a1", post.ID)
	assert.EqualValues(t, 1609772400, post.CreatedUTC)
	assert.EqualValues(t, 5, post.Score)
	assert.JSONEq(t, `{"url":"https://reddit.com/a1","over_18":false}`, string(post.Metadata))

	post, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a2", post.ID)
	assert.EqualValues(t, 1609772401, post.CreatedUTC)
	assert.Nil(t, post.Metadata)
	assert.Equal(t, 3, r.Line())

	var malformed *MalformedLineError
	_, err = r.Next()
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 4, malformed.Line)

	_, err = r.Next()
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 5, malformed.Line)

	post, err = r.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 1609772402, post.CreatedUTC)

	_, err = r.Next()
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 7, malformed.Line)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenPosts(t *testing.T) {
	dir := t.TempDir()
	line := `{"id":"z1","created_utc":1609772400,"title":"$GME"}` + "\n"

	plain := filepath.Join(dir, "posts.ndjson")
	require.NoError(t, os.WriteFile(plain, []byte(line), 0o644))

	compressed := filepath.Join(dir, "posts.ndjson.zst")
	f, err := os.Create(compressed)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(line))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	for _, path := range []string{plain, compressed} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			in, err := OpenPosts(path)
			require.NoError(t, err)
			defer in.Close()

			post, err := NewPostReader(in).Next()
			require.NoError(t, err)
			assert.Equal(t, "z1", post.ID)
			assert.Equal(t, "$GME", post.Title)
		})
	}

	_, err = OpenPosts(filepath.Join(dir, "missing.ndjson"))
	assert.Error(t, err)
}
