// Package indexer keeps the document index in step with the markdown corpus.
//
// A sync loads every .md file in the documents directory, splits it into
// "## " sections and fingerprints the result. The index is rebuilt only
// when:
//
//   - no fingerprint was stored yet
//   - the stored fingerprint differs from the current one
//   - the index is empty although the corpus has sections
//   - the caller forces it
//
// Otherwise the existing index is reused without a single embedding call.
// The new fingerprint is saved only after the rebuild committed, so a failed
// rebuild is retried on the next sync.
//
//	x := indexer.New("docs", idx, fingerprint.NewMetaStore(store))
//	stats, err := x.Sync(ctx, false)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d chunks, rebuilt=%v (%s)\n", stats.Chunks, stats.Rebuilt, stats.Reason)
package indexer
