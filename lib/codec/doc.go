// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides zygiskd's CBOR encoding configuration.
//
// CBOR is used for the daemon status file. The socket protocol shared
// with the injected loader is a fixed binary layout (package wire) and
// does not go through this package.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items, so
// the same status always produces identical bytes. Times are encoded as
// RFC 3339 strings, and types implementing encoding.TextMarshaler (such
// as binhash.Digest) as text strings, which keeps [Diagnose] output
// readable.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
