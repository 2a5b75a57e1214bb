// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/zygiskd/lib/binhash"
)

// memfdName shows up in /proc/<pid>/maps of every process that maps
// the library.
const memfdName = "jit-cache"

// SealFlags is the seal set applied to sealed libraries.
const SealFlags = unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE | unix.F_SEAL_SEAL

func sealedLibrary(path string) (*os.File, binhash.Digest, error) {
	source, err := os.Open(path)
	if err != nil {
		return nil, binhash.Digest{}, err
	}
	defer source.Close()

	fd, err := unix.MemfdCreate(memfdName, unix.MFD_ALLOW_SEALING|unix.MFD_CLOEXEC)
	if err != nil {
		return nil, binhash.Digest{}, fmt.Errorf("memfd_create: %w", err)
	}
	memfd := os.NewFile(uintptr(fd), "memfd:"+memfdName)

	hasher := binhash.NewHasher()
	if _, err := io.Copy(io.MultiWriter(memfd, hasher), source); err != nil {
		memfd.Close()
		return nil, binhash.Digest{}, fmt.Errorf("copying %s: %w", path, err)
	}
	if _, err := unix.FcntlInt(memfd.Fd(), unix.F_ADD_SEALS, SealFlags); err != nil {
		memfd.Close()
		return nil, binhash.Digest{}, fmt.Errorf("sealing memfd: %w", err)
	}
	if _, err := memfd.Seek(0, io.SeekStart); err != nil {
		memfd.Close()
		return nil, binhash.Digest{}, fmt.Errorf("rewinding memfd: %w", err)
	}
	return memfd, binhash.Sum(hasher), nil
}

func plainLibrary(path string) (*os.File, binhash.Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, binhash.Digest{}, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, binhash.Digest{}, err
	}
	// SectionReader reads with pread and leaves the shared offset at 0.
	digest, err := binhash.HashReader(io.NewSectionReader(file, 0, info.Size()))
	if err != nil {
		file.Close()
		return nil, binhash.Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return file, digest, nil
}
