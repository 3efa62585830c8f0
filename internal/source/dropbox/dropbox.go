// Package dropbox implements source.Store on the Dropbox API.
package dropbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/auth"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"

	"github.com/dshills/dropsearch/internal/metrics"
	"github.com/dshills/dropsearch/internal/source"
)

// longPollTimeout is the server-side long-poll window in seconds
const longPollTimeout = 30

// Config configures the Dropbox client
type Config struct {
	AccessToken string
	Timeout     time.Duration // per-request HTTP timeout, must exceed the long-poll window
}

// Store is a source.Store backed by the Dropbox files API
type Store struct {
	client files.Client
}

// New creates a Dropbox store
func New(cfg Config) (*Store, error) {
	if cfg.AccessToken == "" {
		return nil, errors.New("dropbox access token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	client := files.New(dropbox.Config{
		Token:    cfg.AccessToken,
		LogLevel: dropbox.LogOff,
		Client:   &http.Client{Timeout: timeout},
	})
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing files client
func NewWithClient(client files.Client) *Store {
	return &Store{client: client}
}

// ListFolder lists path recursively
func (s *Store) ListFolder(ctx context.Context, path string, includeDeleted bool) (*source.Page, error) {
	arg := files.NewListFolderArg(path)
	arg.Recursive = true
	arg.IncludeDeleted = includeDeleted

	res, err := call(ctx, "list_folder", func() (*files.ListFolderResult, error) {
		return s.client.ListFolder(arg)
	})
	if err != nil {
		return nil, err
	}
	return toPage(res), nil
}

// ListFolderContinue returns the page after cursor
func (s *Store) ListFolderContinue(ctx context.Context, cursor source.Cursor) (*source.Page, error) {
	arg := files.NewListFolderContinueArg(string(cursor))
	res, err := call(ctx, "list_folder_continue", func() (*files.ListFolderResult, error) {
		return s.client.ListFolderContinue(arg)
	})
	if err != nil {
		return nil, err
	}
	return toPage(res), nil
}

// GetLatestCursor returns a cursor for the current state of path
func (s *Store) GetLatestCursor(ctx context.Context, path string) (source.Cursor, error) {
	arg := files.NewListFolderArg(path)
	arg.Recursive = true

	res, err := call(ctx, "get_latest_cursor", func() (*files.ListFolderGetLatestCursorResult, error) {
		return s.client.ListFolderGetLatestCursor(arg)
	})
	if err != nil {
		return "", err
	}
	return source.Cursor(res.Cursor), nil
}

// LongPoll waits for changes after cursor
func (s *Store) LongPoll(ctx context.Context, cursor source.Cursor) (source.Signal, error) {
	arg := files.NewListFolderLongpollArg(string(cursor))
	arg.Timeout = longPollTimeout

	res, err := call(ctx, "longpoll", func() (*files.ListFolderLongpollResult, error) {
		return s.client.ListFolderLongpoll(arg)
	})
	if err != nil {
		return source.Signal{}, err
	}
	return source.Signal{
		Changes: res.Changes,
		Backoff: time.Duration(res.Backoff) * time.Second,
	}, nil
}

// Download returns the bytes of the file at path
func (s *Store) Download(ctx context.Context, path string) ([]byte, error) {
	return call(ctx, "download", func() ([]byte, error) {
		_, body, err := s.client.Download(files.NewDownloadArg(path))
		if err != nil {
			return nil, err
		}
		defer func() { _ = body.Close() }()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, body); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return buf.Bytes(), nil
	})
}

// TemporaryLink returns a four-hour download link for path
func (s *Store) TemporaryLink(ctx context.Context, path string) (string, error) {
	res, err := call(ctx, "get_temporary_link", func() (*files.GetTemporaryLinkResult, error) {
		return s.client.GetTemporaryLink(files.NewGetTemporaryLinkArg(path))
	})
	if err != nil {
		return "", err
	}
	return res.Link, nil
}

// call runs a blocking SDK request, returning early if ctx is cancelled.
// The SDK takes no context, so an abandoned request finishes in the background.
func call[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	start := time.Now()
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-done:
		metrics.RecordProviderOperation(op, time.Since(start), res.err == nil)
		if res.err != nil {
			var zero T
			return zero, classify(op, res.err)
		}
		return res.val, nil
	}
}

func toPage(res *files.ListFolderResult) *source.Page {
	page := &source.Page{
		Cursor:  source.Cursor(res.Cursor),
		HasMore: res.HasMore,
		Entries: make([]source.Entry, 0, len(res.Entries)),
	}
	for _, md := range res.Entries {
		if entry, ok := toEntry(md); ok {
			page.Entries = append(page.Entries, entry)
		}
	}
	return page
}

// toEntry maps Dropbox metadata to a change entry. Folders are dropped.
func toEntry(md files.IsMetadata) (source.Entry, bool) {
	switch m := md.(type) {
	case *files.FileMetadata:
		return source.File{
			Path:        m.PathLower,
			DisplayPath: m.PathDisplay,
			Name:        m.Name,
			ContentID:   m.Id,
			SizeBytes:   int64(m.Size),
			CreatedAt:   m.ClientModified,
			ModifiedAt:  m.ServerModified,
		}, true
	case *files.DeletedMetadata:
		return source.Deletion{
			Path:        m.PathLower,
			DisplayPath: m.PathDisplay,
			Name:        m.Name,
		}, true
	default:
		return nil, false
	}
}

// classify maps SDK errors onto source error kinds
func classify(op string, err error) error {
	var authErr auth.AuthAPIError
	if errors.As(err, &authErr) {
		return source.NewProviderError(op, source.KindAuth, err)
	}

	var continueErr files.ListFolderContinueAPIError
	if errors.As(err, &continueErr) && continueErr.EndpointError != nil &&
		continueErr.EndpointError.Tag == files.ListFolderContinueErrorReset {
		return source.NewProviderError(op, source.KindCursorReset, err)
	}

	var longpollErr files.ListFolderLongpollAPIError
	if errors.As(err, &longpollErr) && longpollErr.EndpointError != nil &&
		longpollErr.EndpointError.Tag == files.ListFolderLongpollErrorReset {
		return source.NewProviderError(op, source.KindCursorReset, err)
	}

	return source.NewProviderError(op, source.KindUnavailable, err)
}
