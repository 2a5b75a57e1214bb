// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestHashFileMatchesReader(t *testing.T) {
	// Larger than io.Copy's buffer so the stream is hashed in pieces.
	content := make([]byte, 256*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := writeFile(t, "libexample.so", content)

	fromFile, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	fromReader, err := HashReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("HashReader: %v", err)
	}
	if fromFile != fromReader {
		t.Errorf("HashFile = %s, HashReader = %s", fromFile, fromReader)
	}
}

func TestDigestIsKeyed(t *testing.T) {
	content := []byte("module library")
	digest, err := HashReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("HashReader: %v", err)
	}
	plain := blake3.Sum256(content)
	if digest == Digest(plain) {
		t.Error("library digest equals unkeyed BLAKE3")
	}
}

func TestHashFileDifferentContent(t *testing.T) {
	first, err := HashFile(writeFile(t, "a.so", []byte("content A")))
	if err != nil {
		t.Fatalf("HashFile(a): %v", err)
	}
	second, err := HashFile(writeFile(t, "b.so", []byte("content B")))
	if err != nil {
		t.Fatalf("HashFile(b): %v", err)
	}
	if first == second {
		t.Error("different files should produce different digests")
	}
}

func TestHashFileNonexistent(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("HashFile should fail for nonexistent file")
	}
}

func TestParseDigestRoundTrip(t *testing.T) {
	original, err := HashReader(bytes.NewReader([]byte("round-trip")))
	if err != nil {
		t.Fatalf("HashReader: %v", err)
	}
	formatted := FormatDigest(original)
	if len(formatted) != 64 {
		t.Fatalf("FormatDigest length = %d, want 64", len(formatted))
	}
	parsed, err := ParseDigest(formatted)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != original {
		t.Errorf("ParseDigest round-trip failed: %s != %s", parsed, original)
	}
}

func TestParseDigestInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not hex", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"},
		{"too short", "abcd"},
		{"too long", "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789aa"},
		{"empty", ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ParseDigest(test.input); err == nil {
				t.Errorf("ParseDigest(%q) should fail", test.input)
			}
		})
	}
}
