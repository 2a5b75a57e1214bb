// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides BLAKE3 content digests for module libraries.
//
// The daemon hashes every module library as it loads it. The digest is
// logged and recorded in the status file so one can tell which build of
// a module a running daemon actually serves, even after the file on
// disk was replaced. Hashing is keyed with a fixed domain key so a
// library digest never collides with a plain BLAKE3 of the same bytes
// computed elsewhere.
//
//   - [HashFile] streams a file through the hasher
//   - [NewHasher] returns a writer for hashing while copying
//   - [FormatDigest] and [ParseDigest] convert to and from hex
package binhash
