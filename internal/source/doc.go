// Package source adapts a cloud file store into a stream of change entries.
//
// The Adapter hides provider paging: ListAll and ContinueFromCursor drain
// every page before returning. Entries are a closed set of variants, File
// and Deletion, consumed with a type switch:
//
//	switch e := entry.(type) {
//	case source.File:
//	    // index e
//	case source.Deletion:
//	    // remove e.Path
//	}
//
// # Errors
//
// Every failure surfaced by the Adapter is a *ProviderError whose kind can be
// tested with errors.Is against ErrProviderAuth, ErrProviderUnavailable and
// ErrCursorReset. The Adapter never retries; backoff belongs to the caller
// that owns the polling loop.
package source
