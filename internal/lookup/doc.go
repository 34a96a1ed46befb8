// Package lookup persists ISIN to LEI mappings in named tables and answers
// batched lookups against them.
//
// Writes are first-write-wins: once an ISIN is stored in a table its LEI is
// never replaced, and re-appending the same records is a no-op. Each Append is
// a single transaction, so readers see either none or all of a batch.
//
// Tables are created lazily on first write. Looking up a table that has never
// been written yields not-found for every ISIN rather than an error.
package lookup
