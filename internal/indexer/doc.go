// Package indexer mirrors a remote folder into the document index.
//
// A Syncer consumes the provider's change feed, decides what to do with each
// entry, and writes documents through the index. Collaborators are passed in
// explicitly:
//
//	syncer := indexer.New(indexer.Deps{
//	    Source:    adapter,
//	    Index:     idx,
//	    Extractor: extractor.New(idx),
//	    Freshness: identity.NewFreshnessCache(10000, time.Hour),
//	    Cache:     search,
//	}, indexer.Config{Root: "/documents"})
//
//	stats, err := syncer.RunFullSync(ctx)
//
// # Sync Modes
//
// RunFullSync lists every file under the root, indexes what is missing, and
// prunes documents whose files are gone. RunIncrementalSync replays the
// changes recorded since the last cursor. If the provider resets the cursor
// the incremental run falls back to a full sync.
//
// Watch long-polls for changes and triggers incremental runs; Schedule runs
// periodic full syncs; Notify coalesces webhook requests into incremental
// runs served by RunNotifications.
//
// # Batching
//
// Entries are processed in batches of Config.BatchSize (default 3). Batches
// run one after another and members of a batch run concurrently:
//
//	for each batch:
//	    errgroup with limit = len(batch)
//	    every member reaches an Outcome; failures never abort the batch
//
// Batch members run on a context without cancellation, so a shutdown waits
// for the current batch and stops before the next.
//
// # Per-file Policy
//
// Present files are checked in order:
//
//  1. Larger than MaxFileSize: skipped_oversize
//  2. Extension not supported: skipped_unsupported
//  3. Freshness cache has this version: skipped_fresh
//  4. Extract. A version already indexed is skipped_current, a failure is
//     failed, otherwise the document is upserted and indexed
//
// Deleted entries remove the document for the path and every document below
// it, since a deleted folder arrives as a single tombstone.
//
// # Error Handling
//
// Per-file errors end up in Statistics.Failures and never fail a run. A run
// returns an error only when the provider cannot be listed or the cursor
// cannot be acquired.
package indexer
