package dropbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/auth"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/source"
)

func TestToEntry(t *testing.T) {
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	created := modified.Add(-time.Hour)

	t.Run("file", func(t *testing.T) {
		md := &files.FileMetadata{
			Metadata:       files.Metadata{Name: "A.pdf", PathLower: "/docs/a.pdf", PathDisplay: "/Docs/A.pdf"},
			Id:             "id:abc",
			ClientModified: created,
			ServerModified: modified,
			Size:           1024,
		}
		entry, ok := toEntry(md)
		require.True(t, ok)

		f, isFile := entry.(source.File)
		require.True(t, isFile)
		assert.Equal(t, "/docs/a.pdf", f.Path)
		assert.Equal(t, "/Docs/A.pdf", f.DisplayPath)
		assert.Equal(t, "A.pdf", f.Name)
		assert.Equal(t, "id:abc", f.ContentID)
		assert.Equal(t, int64(1024), f.SizeBytes)
		assert.Equal(t, created, f.CreatedAt)
		assert.Equal(t, modified, f.ModifiedAt)
	})

	t.Run("deleted", func(t *testing.T) {
		entry, ok := toEntry(&files.DeletedMetadata{Metadata: files.Metadata{Name: "a.pdf", PathLower: "/a.pdf"}})
		require.True(t, ok)
		d, isDeletion := entry.(source.Deletion)
		require.True(t, isDeletion)
		assert.Equal(t, "/a.pdf", d.Path)
	})

	t.Run("folder is dropped", func(t *testing.T) {
		_, ok := toEntry(&files.FolderMetadata{Metadata: files.Metadata{Name: "docs", PathLower: "/docs"}})
		assert.False(t, ok)
	})
}

func TestClassify(t *testing.T) {
	t.Run("auth", func(t *testing.T) {
		err := classify("list_folder", auth.AuthAPIError{APIError: dropbox.APIError{ErrorSummary: "invalid_access_token/"}})
		assert.ErrorIs(t, err, source.ErrProviderAuth)
	})

	t.Run("continue reset", func(t *testing.T) {
		apiErr := files.ListFolderContinueAPIError{
			EndpointError: &files.ListFolderContinueError{Tagged: dropbox.Tagged{Tag: files.ListFolderContinueErrorReset}},
		}
		assert.ErrorIs(t, classify("list_folder_continue", apiErr), source.ErrCursorReset)
	})

	t.Run("longpoll reset", func(t *testing.T) {
		apiErr := files.ListFolderLongpollAPIError{
			EndpointError: &files.ListFolderLongpollError{Tagged: dropbox.Tagged{Tag: files.ListFolderLongpollErrorReset}},
		}
		assert.ErrorIs(t, classify("longpoll", apiErr), source.ErrCursorReset)
	})

	t.Run("other errors are transient", func(t *testing.T) {
		assert.ErrorIs(t, classify("download", errors.New("503")), source.ErrProviderUnavailable)
	})
}

func TestCallHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := call(ctx, "longpoll", func() (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	s, err := New(Config{AccessToken: "token"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}
