// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/zygiskd/lib/androidlog"
	"github.com/bureau-foundation/zygiskd/lib/companion"
	"github.com/bureau-foundation/zygiskd/lib/module"
	"github.com/bureau-foundation/zygiskd/lib/rootimpl"
	"github.com/bureau-foundation/zygiskd/lib/testutil"
	"github.com/bureau-foundation/zygiskd/lib/wire"
)

const testArch = "arm64-v8a"

type fakeBackend struct {
	name    string
	status  rootimpl.Status
	granted map[int32]bool
	umount  map[int32]bool
}

func (f *fakeBackend) Name() string                   { return f.name }
func (f *fakeBackend) Detect() rootimpl.Status        { return f.status }
func (f *fakeBackend) UIDGrantedRoot(uid int32) bool  { return f.granted[uid] }
func (f *fakeBackend) UIDShouldUmount(uid int32) bool { return f.umount[uid] }

func kernelSURoot() *rootimpl.Root {
	return rootimpl.Setup(
		&fakeBackend{
			name:    "kernelsu",
			status:  rootimpl.Supported,
			granted: map[int32]bool{0: true},
			umount:  map[int32]bool{10123: true},
		},
		&fakeBackend{name: "magisk", status: rootimpl.Absent},
	)
}

type logRecord struct {
	priority androidlog.Priority
	tag      string
	message  string
}

type fakeSink struct {
	records chan logRecord
}

func (f *fakeSink) Write(priority androidlog.Priority, tag, message string) error {
	f.records <- logRecord{priority, tag, message}
	return nil
}

// loadModules builds a modules root with alpha and gamma enabled and
// beta disabled.
func loadModules(t *testing.T) []*module.Module {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		moduleDir := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Join(moduleDir, "zygisk"), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(module.LibraryPath(moduleDir, testArch), []byte(name+" code"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "beta", "disable"), nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	modules, err := module.Load(module.Options{Dir: root, Arch: testArch, Mode: module.ModeSealed})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { module.CloseAll(modules) })
	return modules
}

type testDaemon struct {
	name  string
	state *Context
}

// startDaemon listens on a unique abstract name and serves state until
// the test ends.
func startDaemon(t *testing.T, state *Context) *testDaemon {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	name := testutil.UniqueID("zygiskd-test")
	listener, err := Listen(ListenConfig{Name: name, Logger: logger})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(state, logger).Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Serve to return"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return &testDaemon{name: name, state: state}
}

func (d *testDaemon) dial(t *testing.T, action wire.Action) *wire.Conn {
	t.Helper()
	unixConn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: "@" + d.name, Net: "unix"})
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}
	t.Cleanup(func() { unixConn.Close() })
	if err := unixConn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		t.Fatalf("SetDeadline: %v", err)
	}
	conn := wire.NewConn(unixConn)
	if err := conn.WriteUint8(uint8(action)); err != nil {
		t.Fatalf("writing action: %v", err)
	}
	return conn
}

// requireClosed asserts the daemon closed the connection without
// writing anything.
func requireClosed(t *testing.T, conn *wire.Conn) {
	t.Helper()
	if value, err := conn.ReadUint8(); !errors.Is(err, io.EOF) {
		t.Fatalf("read after rejected request = (%d, %v), want EOF", value, err)
	}
}

func fullState(t *testing.T) *Context {
	t.Helper()
	return &Context{
		NativeBridge: "0",
		Modules:      loadModules(t),
		Root:         kernelSURoot(),
	}
}

func TestPingHeartbeat(t *testing.T) {
	daemon := startDaemon(t, fullState(t))
	requireClosed(t, daemon.dial(t, wire.PingHeartbeat))
}

func TestReadNativeBridge(t *testing.T) {
	state := fullState(t)
	state.NativeBridge = "libhoudini.so"
	daemon := startDaemon(t, state)

	bridge, err := daemon.dial(t, wire.ReadNativeBridge).ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if bridge != "libhoudini.so" {
		t.Errorf("native bridge = %q", bridge)
	}
}

func TestReadModulesSkipsDisabled(t *testing.T) {
	daemon := startDaemon(t, fullState(t))
	conn := daemon.dial(t, wire.ReadModules)

	count, err := conn.ReadUsize()
	if err != nil {
		t.Fatalf("ReadUsize: %v", err)
	}
	if count != 2 {
		t.Fatalf("module count = %d, want 2", count)
	}
	var names []string
	for range count {
		name, err := conn.ReadString()
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		library, err := conn.RecvFile("library")
		if err != nil {
			t.Fatalf("RecvFile: %v", err)
		}
		content := make([]byte, 64)
		n, err := library.ReadAt(content, 0)
		library.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("ReadAt: %v", err)
		}
		if string(content[:n]) != name+" code" {
			t.Errorf("library for %s = %q", name, content[:n])
		}
		names = append(names, name)
	}
	if want := []string{"alpha", "gamma"}; !slices.Equal(names, want) {
		t.Errorf("modules = %v, want %v", names, want)
	}
}

func TestGetProcessFlags(t *testing.T) {
	daemon := startDaemon(t, fullState(t))

	tests := []struct {
		uid  uint32
		want uint32
	}{
		{0, wire.ProcessGrantedRoot | wire.ProcessRootIsKSU},
		{10123, wire.ProcessOnDenylist | wire.ProcessRootIsKSU},
		{10500, wire.ProcessRootIsKSU},
	}
	for _, test := range tests {
		conn := daemon.dial(t, wire.GetProcessFlags)
		if err := conn.WriteUint32(test.uid); err != nil {
			t.Fatalf("WriteUint32: %v", err)
		}
		flags, err := conn.ReadUint32()
		if err != nil {
			t.Fatalf("ReadUint32: %v", err)
		}
		if flags != test.want {
			t.Errorf("flags(uid %d) = %#x, want %#x", test.uid, flags, test.want)
		}
	}
}

func TestGetProcessFlagsMagisk(t *testing.T) {
	state := fullState(t)
	state.Root = rootimpl.Setup(
		&fakeBackend{name: "kernelsu", status: rootimpl.Absent},
		&fakeBackend{name: "magisk", status: rootimpl.Supported, granted: map[int32]bool{2000: true}},
	)
	daemon := startDaemon(t, state)

	conn := daemon.dial(t, wire.GetProcessFlags)
	if err := conn.WriteUint32(2000); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	flags, err := conn.ReadUint32()
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	if want := wire.ProcessGrantedRoot | wire.ProcessRootIsMagisk; flags != want {
		t.Errorf("flags = %#x, want %#x", flags, want)
	}
}

func TestGetProcessFlagsWithoutProvider(t *testing.T) {
	for _, root := range []*rootimpl.Root{
		rootimpl.Setup(&fakeBackend{status: rootimpl.Absent}, &fakeBackend{status: rootimpl.Absent}),
		rootimpl.Setup(&fakeBackend{status: rootimpl.Supported}, &fakeBackend{status: rootimpl.Supported}),
		rootimpl.Setup(&fakeBackend{status: rootimpl.TooOld}, &fakeBackend{status: rootimpl.Absent}),
	} {
		state := fullState(t)
		state.Root = root
		daemon := startDaemon(t, state)

		conn := daemon.dial(t, wire.GetProcessFlags)
		if err := conn.WriteUint32(0); err != nil {
			t.Fatalf("WriteUint32: %v", err)
		}
		requireClosed(t, conn)
	}
}

func TestUnknownAction(t *testing.T) {
	daemon := startDaemon(t, fullState(t))
	requireClosed(t, daemon.dial(t, wire.Action(42)))

	// The daemon keeps serving other connections.
	if _, err := daemon.dial(t, wire.ReadNativeBridge).ReadString(); err != nil {
		t.Fatalf("ReadNativeBridge after bad action: %v", err)
	}
}

func TestGetModuleDir(t *testing.T) {
	state := fullState(t)
	daemon := startDaemon(t, state)

	conn := daemon.dial(t, wire.GetModuleDir)
	if err := conn.WriteUsize(1); err != nil {
		t.Fatalf("WriteUsize: %v", err)
	}
	dir, err := conn.RecvFile("module-dir")
	if err != nil {
		t.Fatalf("RecvFile: %v", err)
	}
	defer dir.Close()

	got, err := dir.Stat()
	if err != nil {
		t.Fatalf("Stat(received): %v", err)
	}
	want, err := os.Stat(state.Modules[1].Dir)
	if err != nil {
		t.Fatalf("Stat(module dir): %v", err)
	}
	if !os.SameFile(got, want) {
		t.Errorf("received descriptor is not %s", state.Modules[1].Dir)
	}
}

func TestModuleIndexOutOfRange(t *testing.T) {
	state := fullState(t)
	daemon := startDaemon(t, state)

	for _, action := range []wire.Action{wire.GetModuleDir, wire.RequestCompanionSocket} {
		conn := daemon.dial(t, action)
		if err := conn.WriteUsize(uint64(len(state.Modules))); err != nil {
			t.Fatalf("WriteUsize: %v", err)
		}
		requireClosed(t, conn)
	}

	// The daemon keeps serving other connections.
	conn := daemon.dial(t, wire.GetModuleDir)
	if err := conn.WriteUsize(0); err != nil {
		t.Fatalf("WriteUsize: %v", err)
	}
	dir, err := conn.RecvFile("module-dir")
	if err != nil {
		t.Fatalf("GetModuleDir after out-of-range index: %v", err)
	}
	dir.Close()
}

func TestRequestCompanionFailingCompanion(t *testing.T) {
	falseBinary := "/bin/false"
	if _, err := os.Stat(falseBinary); err != nil {
		t.Skipf("%s not available", falseBinary)
	}
	state := fullState(t)
	logger := slog.New(slog.DiscardHandler)
	manager := companion.NewManager(state.Modules, &companion.ExecLauncher{Executable: falseBinary, Logger: logger}, logger)
	t.Cleanup(func() { manager.Close() })
	state.Companions = manager
	daemon := startDaemon(t, state)

	conn := daemon.dial(t, wire.RequestCompanionSocket)
	if err := conn.WriteUsize(0); err != nil {
		t.Fatalf("WriteUsize: %v", err)
	}
	status, err := conn.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8: %v", err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestRequestLogcatFd(t *testing.T) {
	state := fullState(t)
	sink := &fakeSink{records: make(chan logRecord, 8)}
	state.LogSink = sink
	daemon := startDaemon(t, state)

	conn := daemon.dial(t, wire.RequestLogcatFd)
	sent := []logRecord{
		{androidlog.Info, "ExampleModule", "hooked"},
		{androidlog.Error, "ExampleModule", ""},
	}
	for _, record := range sent {
		if err := conn.WriteUint8(uint8(record.priority)); err != nil {
			t.Fatalf("WriteUint8: %v", err)
		}
		if err := conn.WriteString(record.tag); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
		if err := conn.WriteString(record.message); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
	}
	conn.Close()

	for _, want := range sent {
		got := testutil.RequireReceive(t, sink.records, 5*time.Second, "waiting for forwarded record")
		if got != want {
			t.Errorf("forwarded %+v, want %+v", got, want)
		}
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := Listen(ListenConfig{Name: testutil.UniqueID("zygiskd-test")})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(&Context{}, slog.New(slog.DiscardHandler)).Serve(ctx, listener)
	}()
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Serve to return"); err != nil {
		t.Errorf("Serve: %v", err)
	}
}

func TestSocketName(t *testing.T) {
	name := SocketName("abc123")
	if name != "zygiskd32abc123" && name != "zygiskd64abc123" {
		t.Errorf("SocketName = %q", name)
	}
}
