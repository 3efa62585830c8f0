package source

import "time"

// Cursor is an opaque position in the provider's change feed
type Cursor string

// Entry is a change record: either a File or a Deletion.
type Entry interface {
	EntryPath() string
	isEntry()
}

// File is a present file
type File struct {
	Path        string // lowercase provider path, stable identity
	DisplayPath string
	Name        string
	ContentID   string // provider file id
	SizeBytes   int64
	CreatedAt   time.Time // client modification time
	ModifiedAt  time.Time // server modification time
}

// Deletion is a tombstone for a file or folder
type Deletion struct {
	Path        string
	DisplayPath string
	Name        string
}

func (f File) EntryPath() string     { return f.Path }
func (d Deletion) EntryPath() string { return d.Path }

func (File) isEntry()     {}
func (Deletion) isEntry() {}

// Page is one page of a listing
type Page struct {
	Entries []Entry
	Cursor  Cursor
	HasMore bool
}

// Signal is the result of a long-poll
type Signal struct {
	Changes bool
	Backoff time.Duration // provider-requested wait before polling again
}
