// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides read-only access to SQLite databases
// owned by another process.
//
// zygiskd never owns a database. It reads the root provider's policy
// store (Magisk keeps grants and its denylist in /data/adb/magisk.db)
// while the provider's own daemon keeps writing to it. The pool
// therefore opens every connection with SQLITE_OPEN_READONLY, sets
// query_only so no statement can write even through an ATTACH, and
// never touches journal_mode: changing it would rewrite the owner's
// file header.
//
// The pool is built on zombiezen's sqlitex.Pool. Callers [Pool.Take] a
// connection, run queries, and [Pool.Put] it back. Connections are not
// safe for concurrent use; each goroutine holds its own for the
// duration of its work.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/data/adb/magisk.db",
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
package sqlitepool
