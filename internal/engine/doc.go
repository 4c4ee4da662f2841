// Package engine runs replication for one local instance.
//
// A Session owns the current origin-link snapshot and the resolver tables
// derived from it. Reload pages through every stored link, compiles each
// one, and publishes the new snapshot with a single atomic swap once paging
// is done, so concurrent pulls never mix aliases from two snapshots.
//
// Pull and IngestBatch bring remote refs in: the origin is re-addressed to
// a local alias, mailbox tags are added, and the ref is stored with a
// compare-and-swap on its version token. A ref with local edits is merged
// three ways against the last synced version; merges that fail become
// entries in the conflict log. Push addresses local refs for a remote, and
// Save applies local edits, merging when the stored version moved on.
//
// Work on one ref identity (url + origin) is serialized. Different
// identities run concurrently.
package engine
