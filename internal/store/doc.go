// Package store opens the forScore library file and scopes every mutation to
// a single rollback-on-failure transaction.
//
// The store is owned by the host application; this tool is a guest writer.
// Two rules follow. Opening never creates or migrates the file - a missing or
// unrecognizable file is an IO error, and a lock held by the host fails fast
// instead of blocking. And no partial write is ever visible: all mutations
// run inside Transact, which rolls back on any error and runs the registered
// consistency guard before commit.
package store
