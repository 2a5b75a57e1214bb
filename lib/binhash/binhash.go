// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// libraryDomainKey is the ASCII domain name zero-padded to 32 bytes.
// Changing it changes every digest.
var libraryDomainKey = [32]byte{
	'z', 'y', 'g', 'i', 's', 'k', 'd', '.', 'm', 'o', 'd', 'u', 'l', 'e', '.',
	'l', 'i', 'b', 'r', 'a', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// NewHasher returns a keyed BLAKE3 hasher. Write the library bytes to
// it and pass it to [Sum].
func NewHasher() hash.Hash {
	hasher, err := blake3.NewKeyed(libraryDomainKey[:])
	if err != nil {
		// Only fails for a key that is not 32 bytes.
		panic(fmt.Sprintf("binhash: blake3.NewKeyed: %v", err))
	}
	return hasher
}

// Sum extracts the digest from a hasher made by [NewHasher].
func Sum(hasher hash.Hash) Digest {
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// HashReader streams reader through the hasher.
func HashReader(reader io.Reader) (Digest, error) {
	hasher := NewHasher()
	if _, err := io.Copy(hasher, reader); err != nil {
		return Digest{}, err
	}
	return Sum(hasher), nil
}

// HashFile computes the digest of the file at path with constant
// memory use.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	digest, err := HashReader(file)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

// FormatDigest returns the hex encoding used in logs and the status
// file.
func FormatDigest(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return FormatDigest(d)
}

// ParseDigest parses a 64-character hex digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing hash digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("hash digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(FormatDigest(d)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	digest, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = digest
	return nil
}
