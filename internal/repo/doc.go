// Package repo is the entity repository: typed reads and invariant-
// preserving writes for the entities the store holds - scores and bookmarks
// (both in ZITEM), setlists, libraries, and the meta kinds (composer, genre,
// keyword, label).
//
// Reads accept any Querier and run at the connection's default isolation.
// Writes take a *store.Tx: the caller owns the transaction, one per command
// invocation, and the consistency guard runs before its commit. Key
// allocation matches the host exactly - the next key is the maximum Z_PK
// across every entity table plus one, computed inside the inserting
// transaction.
package repo
