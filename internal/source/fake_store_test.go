package source

import (
	"context"
	"sync"
)

// fakeStore serves pre-built pages keyed by cursor
type fakeStore struct {
	mu          sync.Mutex
	listPage    *Page
	pages       map[Cursor]*Page
	listErr     error
	continueErr error
	calls       map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{pages: make(map[Cursor]*Page), calls: make(map[string]int)}
}

func (f *fakeStore) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeStore) ListFolder(ctx context.Context, path string, includeDeleted bool) (*Page, error) {
	f.count("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listPage, nil
}

func (f *fakeStore) ListFolderContinue(ctx context.Context, cursor Cursor) (*Page, error) {
	f.count("continue")
	if f.continueErr != nil {
		return nil, f.continueErr
	}
	page, ok := f.pages[cursor]
	if !ok {
		return &Page{Cursor: cursor}, nil
	}
	return page, nil
}

func (f *fakeStore) GetLatestCursor(ctx context.Context, path string) (Cursor, error) {
	f.count("latest")
	return "latest", nil
}

func (f *fakeStore) LongPoll(ctx context.Context, cursor Cursor) (Signal, error) {
	f.count("longpoll")
	return Signal{Changes: true}, nil
}

func (f *fakeStore) Download(ctx context.Context, path string) ([]byte, error) {
	f.count("download")
	return []byte(path), nil
}

func (f *fakeStore) TemporaryLink(ctx context.Context, path string) (string, error) {
	f.count("link")
	return "https://dl.example.com" + path, nil
}
