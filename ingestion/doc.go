// Package ingestion turns stored publication documents into vectors.
//
// The Pipeline fetches a document from object storage, extracts its text,
// splits it into sentence-aligned chunks and hands them to the Indexer, which
// embeds each chunk and upserts the results in fixed-size batches.
//
// Failures are contained at the smallest unit of work: a chunk that cannot be
// embedded is skipped, a batch that cannot be upserted is reported by index,
// and a document that cannot be fetched is reported without stopping the
// others. Vector IDs derive from the document identity and chunk index, so
// indexing a document again overwrites its vectors instead of duplicating them.
package ingestion
