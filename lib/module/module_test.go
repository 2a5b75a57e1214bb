// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/zygiskd/lib/binhash"
)

const testArch = "arm64-v8a"

type fixtureModule struct {
	name     string
	library  []byte
	disabled bool
}

// buildTree creates a modules root. A nil library means the module
// ships no library for testArch.
func buildTree(t *testing.T, modules []fixtureModule) string {
	t.Helper()
	root := t.TempDir()
	for _, module := range modules {
		moduleDir := filepath.Join(root, module.name)
		if err := os.MkdirAll(filepath.Join(moduleDir, "zygisk"), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if module.library != nil {
			if err := os.WriteFile(LibraryPath(moduleDir, testArch), module.library, 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
		}
		if module.disabled {
			if err := os.WriteFile(filepath.Join(moduleDir, "disable"), nil, 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
		}
	}
	return root
}

func load(t *testing.T, dir string, mode Mode) []*Module {
	t.Helper()
	modules, err := Load(Options{Dir: dir, Arch: testArch, Mode: mode})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { CloseAll(modules) })
	return modules
}

func names(modules []*Module) []string {
	var result []string
	for _, module := range modules {
		result = append(result, module.Name)
	}
	return result
}

func readAll(t *testing.T, file *os.File) []byte {
	t.Helper()
	info, err := file.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	content := make([]byte, info.Size())
	if _, err := file.ReadAt(content, 0); err != nil && err != io.EOF {
		t.Fatalf("ReadAt: %v", err)
	}
	return content
}

func TestLoadSelectsEnabledModulesInOrder(t *testing.T) {
	root := buildTree(t, []fixtureModule{
		{name: "delta", library: []byte("delta library")},
		{name: "alpha", library: []byte("alpha library")},
		{name: "beta", library: []byte("beta library"), disabled: true},
		{name: "gamma"},
	})
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("not a module"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	for _, mode := range []Mode{ModeSealed, ModePlain} {
		t.Run(mode.String(), func(t *testing.T) {
			modules := load(t, root, mode)
			if got, want := names(modules), []string{"alpha", "delta"}; !slices.Equal(got, want) {
				t.Fatalf("modules = %v, want %v", got, want)
			}
			for _, module := range modules {
				want := []byte(module.Name + " library")
				if got := readAll(t, module.Library); !bytes.Equal(got, want) {
					t.Errorf("%s library = %q, want %q", module.Name, got, want)
				}
				digest, err := binhash.HashReader(bytes.NewReader(want))
				if err != nil {
					t.Fatalf("HashReader: %v", err)
				}
				if module.Digest != digest {
					t.Errorf("%s digest = %s, want %s", module.Name, module.Digest, digest)
				}
				if module.Dir != filepath.Join(root, module.Name) {
					t.Errorf("%s dir = %s", module.Name, module.Dir)
				}
			}
		})
	}
}

func TestLoadLogsSkippedModules(t *testing.T) {
	root := buildTree(t, []fixtureModule{
		{name: "beta", library: []byte("beta library"), disabled: true},
		{name: "gamma"},
	})
	var output bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&output, &slog.HandlerOptions{Level: slog.LevelDebug}))

	modules, err := Load(Options{Dir: root, Arch: testArch, Mode: ModePlain, Logger: logger})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(modules) != 0 {
		CloseAll(modules)
		t.Fatalf("modules = %v, want none", names(modules))
	}

	logged := output.String()
	for _, want := range []string{
		`msg="module disabled" module=beta`,
		`msg="module has no library for arch" module=gamma arch=` + testArch,
	} {
		if !strings.Contains(logged, want) {
			t.Errorf("log missing %q:\n%s", want, logged)
		}
	}
}

func TestLoadMissingRoot(t *testing.T) {
	modules := load(t, filepath.Join(t.TempDir(), "absent"), ModeSealed)
	if len(modules) != 0 {
		t.Fatalf("modules = %v, want none", names(modules))
	}
}

func TestLoadSkipsUnreadableLibrary(t *testing.T) {
	root := buildTree(t, []fixtureModule{
		{name: "broken"},
		{name: "working", library: []byte("ok")},
	})
	// A directory where the library should be passes the existence
	// check but cannot be read.
	if err := os.Mkdir(LibraryPath(filepath.Join(root, "broken"), testArch), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	for _, mode := range []Mode{ModeSealed, ModePlain} {
		t.Run(mode.String(), func(t *testing.T) {
			modules := load(t, root, mode)
			if got, want := names(modules), []string{"working"}; !slices.Equal(got, want) {
				t.Fatalf("modules = %v, want %v", got, want)
			}
		})
	}
}

func TestLoadRequiresArch(t *testing.T) {
	if _, err := Load(Options{Dir: t.TempDir()}); err == nil {
		t.Fatal("Load without Arch succeeded")
	}
}

func TestSealedLibraryRejectsModification(t *testing.T) {
	root := buildTree(t, []fixtureModule{{name: "sealed", library: []byte("immutable code")}})
	library := load(t, root, ModeSealed)[0].Library

	seals, err := unix.FcntlInt(library.Fd(), unix.F_GET_SEALS, 0)
	if err != nil {
		t.Fatalf("F_GET_SEALS: %v", err)
	}
	if seals&SealFlags != SealFlags {
		t.Errorf("seals = %#x, want %#x set", seals, SealFlags)
	}

	// The descriptor is open read-write; only the seals stop writes.
	if _, err := library.WriteAt([]byte("patched"), 0); !errors.Is(err, unix.EPERM) {
		t.Errorf("WriteAt error = %v, want EPERM", err)
	}
	if err := library.Truncate(4); !errors.Is(err, unix.EPERM) {
		t.Errorf("shrinking Truncate error = %v, want EPERM", err)
	}
	if err := library.Truncate(1 << 20); !errors.Is(err, unix.EPERM) {
		t.Errorf("growing Truncate error = %v, want EPERM", err)
	}
	if _, err := unix.FcntlInt(library.Fd(), unix.F_ADD_SEALS, unix.F_SEAL_FUTURE_WRITE); !errors.Is(err, unix.EPERM) {
		t.Errorf("F_ADD_SEALS error = %v, want EPERM", err)
	}
	if got := readAll(t, library); string(got) != "immutable code" {
		t.Errorf("library = %q after rejected writes", got)
	}
}

func TestSealedLibraryIsDetachedFromDisk(t *testing.T) {
	root := buildTree(t, []fixtureModule{{name: "updated", library: []byte("version one")}})
	library := load(t, root, ModeSealed)[0].Library

	path := LibraryPath(filepath.Join(root, "updated"), testArch)
	if err := os.WriteFile(path, []byte("version two"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := readAll(t, library); string(got) != "version one" {
		t.Errorf("sealed library = %q, want the bytes loaded at startup", got)
	}
}

func TestPlainLibraryTracksDisk(t *testing.T) {
	root := buildTree(t, []fixtureModule{{name: "debug", library: []byte("version one")}})
	library := load(t, root, ModePlain)[0].Library

	// Regular files report EINVAL; tmpfs files report only F_SEAL_SEAL.
	if seals, err := unix.FcntlInt(library.Fd(), unix.F_GET_SEALS, 0); err == nil && seals&unix.F_SEAL_WRITE != 0 {
		t.Errorf("plain library seals = %#x, want no write seal", seals)
	}

	path := LibraryPath(filepath.Join(root, "debug"), testArch)
	if err := os.WriteFile(path, []byte("version two"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := readAll(t, library); string(got) != "version two" {
		t.Errorf("plain library = %q, want the current file contents", got)
	}

	offset, err := library.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if offset != 0 {
		t.Errorf("plain library offset = %d after load, want 0", offset)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		value string
		want  Mode
		fails bool
	}{
		{"", DefaultMode, false},
		{"auto", DefaultMode, false},
		{"sealed", ModeSealed, false},
		{"plain", ModePlain, false},
		{"memfd", 0, true},
	}
	for _, test := range tests {
		got, err := ParseMode(test.value)
		if test.fails {
			if err == nil {
				t.Errorf("ParseMode(%q) succeeded", test.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): %v", test.value, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseMode(%q) = %s, want %s", test.value, got, test.want)
		}
	}
}
