// Package store provides SQLite-backed persistence for federation state.
//
// The store holds:
//   - Origin links: replication relationships, read back in pages
//   - Refs: the current version of each (url, origin) with its sync marker
//   - Ref versions: every version a ref has held, used as merge bases
//   - Conflicts: artifacts for merges that need manual resolution
//
// # Patterns
//
// Compare-and-swap writes
//   - PutRef takes the version the caller read; a different stored version
//     fails with ErrVersionMismatch and nothing is written
//   - Version tokens come from ir.VersionToken, so rewriting identical
//     content keeps the same token
//
// Logical ordering
//   - Links and conflicts are ordered by seq INTEGER, never by timestamps
//   - FetchOriginLinks pages by keyset (seq > after), so concurrent inserts
//     never shift a page boundary
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
