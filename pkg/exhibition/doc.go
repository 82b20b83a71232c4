// Package exhibition provides a reusable library for composing exhibitions
// out of ordered sections and ordered content blocks, with pluggable
// repository and blob storage backends.
//
// It exposes a single Service interface that orchestrates the content tree
// (exhibitions, sections, blocks), the supporting book catalog and the
// lifecycle of image assets. Implementations of repositories (memory,
// Postgres) and blob stores (memory, filesystem, S3, MinIO) are provided
// under subpackages.
//
// # Content blocks
//
// A block is either free text or a reference to a catalog book, never both.
// The variant is carried by BlockPayload, so a block value cannot hold both
// kinds of payload. Rows loaded from storage go through
// NewContentBlockFromColumns, which re-checks the rule.
//
// # Ordering
//
// Sections are ordered within their exhibition and blocks within their
// section. Positions are positive integers, unique per scope, allocated as
// max+1 unless the caller asks for a specific free position. Deleting a
// sibling leaves a gap; positions are never compacted.
//
// # Media
//
// Image bytes live in a BlobStore while the reference lives in a row, and the
// two cannot share a transaction. Replacements therefore write the new blob,
// commit the row, then delete the old blob. A failure of the last step leaves
// an orphan which is logged and reported to the EventSink, never a dangling
// reference.
package exhibition
