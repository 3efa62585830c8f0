package source

import (
	"context"
)

// Store is the cloud file store the adapter reads from
type Store interface {
	ListFolder(ctx context.Context, path string, includeDeleted bool) (*Page, error)
	ListFolderContinue(ctx context.Context, cursor Cursor) (*Page, error)
	GetLatestCursor(ctx context.Context, path string) (Cursor, error)
	LongPoll(ctx context.Context, cursor Cursor) (Signal, error)
	Download(ctx context.Context, path string) ([]byte, error)
	TemporaryLink(ctx context.Context, path string) (string, error)
}

// Options configures an Adapter
type Options struct {
	// IncludeDeleted keeps tombstones in full listings
	IncludeDeleted bool
}

// Adapter exposes the change feed of a Store
type Adapter struct {
	store Store
	opts  Options
}

// NewAdapter creates an Adapter over store
func NewAdapter(store Store, opts Options) *Adapter {
	return &Adapter{store: store, opts: opts}
}

// ListAll returns every entry under root, following pagination.
// Tombstones are dropped unless IncludeDeleted is set.
func (a *Adapter) ListAll(ctx context.Context, root string) ([]Entry, error) {
	page, err := a.store.ListFolder(ctx, root, a.opts.IncludeDeleted)
	if err != nil {
		return nil, classify("list_folder", err)
	}

	var entries []Entry
	for {
		for _, e := range page.Entries {
			if _, deleted := e.(Deletion); deleted && !a.opts.IncludeDeleted {
				continue
			}
			entries = append(entries, e)
		}
		if !page.HasMore {
			return entries, nil
		}
		if page, err = a.store.ListFolderContinue(ctx, page.Cursor); err != nil {
			return nil, classify("list_folder_continue", err)
		}
	}
}

// GetLatestCursor returns a cursor positioned at the current state of root
func (a *Adapter) GetLatestCursor(ctx context.Context, root string) (Cursor, error) {
	cursor, err := a.store.GetLatestCursor(ctx, root)
	if err != nil {
		return "", classify("get_latest_cursor", err)
	}
	return cursor, nil
}

// PollForChanges blocks until the provider reports changes after cursor or
// its long-poll window elapses.
func (a *Adapter) PollForChanges(ctx context.Context, cursor Cursor) (Signal, error) {
	sig, err := a.store.LongPoll(ctx, cursor)
	if err != nil {
		return Signal{}, classify("longpoll", err)
	}
	return sig, nil
}

// ContinueFromCursor returns every change after cursor, in provider order,
// and the cursor to use next. Tombstones are always included.
func (a *Adapter) ContinueFromCursor(ctx context.Context, cursor Cursor) ([]Entry, Cursor, error) {
	var entries []Entry
	for {
		page, err := a.store.ListFolderContinue(ctx, cursor)
		if err != nil {
			return nil, "", classify("list_folder_continue", err)
		}
		entries = append(entries, page.Entries...)
		if page.Cursor != "" {
			cursor = page.Cursor
		}
		if !page.HasMore {
			return entries, cursor, nil
		}
	}
}

// Download returns the content of the file at path
func (a *Adapter) Download(ctx context.Context, path string) ([]byte, error) {
	data, err := a.store.Download(ctx, path)
	if err != nil {
		return nil, classify("download", err)
	}
	return data, nil
}

// TemporaryLink returns a short-lived download URL for path
func (a *Adapter) TemporaryLink(ctx context.Context, path string) (string, error) {
	link, err := a.store.TemporaryLink(ctx, path)
	if err != nil {
		return "", classify("get_temporary_link", err)
	}
	return link, nil
}
