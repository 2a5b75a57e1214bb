// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bureau-foundation/zygiskd/lib/androidlog"
	"github.com/bureau-foundation/zygiskd/lib/arch"
	"github.com/bureau-foundation/zygiskd/lib/companion"
	"github.com/bureau-foundation/zygiskd/lib/config"
	"github.com/bureau-foundation/zygiskd/lib/daemon"
	"github.com/bureau-foundation/zygiskd/lib/magic"
	"github.com/bureau-foundation/zygiskd/lib/module"
	"github.com/bureau-foundation/zygiskd/lib/process"
	"github.com/bureau-foundation/zygiskd/lib/rootimpl"
	"github.com/bureau-foundation/zygiskd/lib/rootimpl/kernelsu"
	"github.com/bureau-foundation/zygiskd/lib/rootimpl/magisk"
	"github.com/bureau-foundation/zygiskd/lib/statefile"
	"github.com/bureau-foundation/zygiskd/lib/sysprop"
	"github.com/bureau-foundation/zygiskd/lib/version"
)

const (
	// nativeBridgeProperty names the native bridge library; "0" means
	// none.
	nativeBridgeProperty = "ro.dalvik.vm.native.bridge"

	// archEnvironment carries the resolved ABI to re-executed
	// companions so they skip the property lookup.
	archEnvironment = "ZYGISKD_ARCH"
)

func runDaemon(cfg *config.Config) error {
	if err := process.SetParentDeathSignal(syscall.SIGKILL); err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg.Log, cfg.SlogLevel(), os.Stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	properties := sysprop.Getprop{}

	abi, err := arch.Detect(ctx, properties)
	if err != nil {
		return fmt.Errorf("resolving architecture: %w", err)
	}
	logger.Info("zygiskd starting", "version", version.Info(), "arch", abi, "pid", os.Getpid())

	mode, err := module.ParseMode(cfg.LibraryMode)
	if err != nil {
		return err
	}
	modules, err := module.Load(module.Options{
		Dir:    cfg.Paths.Modules,
		Arch:   abi,
		Mode:   mode,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("loading modules: %w", err)
	}
	defer module.CloseAll(modules)

	nativeBridge, err := sysprop.GetDefault(ctx, properties, nativeBridgeProperty, "0")
	if err != nil {
		logger.Warn("reading native bridge property", "error", err)
		nativeBridge = "0"
	}

	magiskBackend := magisk.New(magisk.Config{
		DatabasePath:    cfg.Paths.MagiskDB,
		PackageListPath: cfg.Paths.PackagesList,
		Logger:          logger.With("backend", "magisk"),
	})
	defer magiskBackend.Close()
	root := rootimpl.Setup(kernelsu.New(logger.With("backend", "kernelsu")), magiskBackend)
	logger.Info("root provider detected", "provider", root.Provider())

	token, err := magic.Load(cfg.Paths.Magic, logger)
	if err != nil {
		return err
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable path: %w", err)
	}
	companions := companion.NewManager(modules, companionLauncher(executable, os.Args[0], abi, logger), logger)
	defer companions.Close()

	state := &daemon.Context{
		NativeBridge: nativeBridge,
		Modules:      modules,
		Root:         root,
		Companions:   companions,
	}
	if sink, err := androidlog.Dial(cfg.Log.Socket); err != nil {
		logger.Warn("logd unavailable, forwarded records go to the daemon log", "error", err)
	} else {
		defer sink.Close()
		state.LogSink = sink
	}

	socketName := daemon.SocketName(token)
	listener, err := daemon.Listen(daemon.ListenConfig{
		Name:          socketName,
		SocketContext: cfg.Socket.Context,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating daemon socket: %w", err)
	}
	logger.Info("listening", "socket", "@"+socketName, "modules", len(modules))

	statusPath := statefile.Path(cfg.Paths.Run, arch.Bits())
	status := buildStatus(abi, root, socketName, nativeBridge, mode, modules, started)
	if digest, _, err := version.SelfDigest(); err != nil {
		logger.Warn("hashing own binary", "error", err)
	} else {
		status.Binary = digest
	}
	if err := statefile.Write(statusPath, status); err != nil {
		logger.Warn("writing status file", "path", statusPath, "error", err)
	} else {
		defer statefile.Remove(statusPath)
	}

	if err := daemon.NewServer(state, logger).Serve(ctx, listener); err != nil {
		return err
	}
	logger.Info("zygiskd stopping")
	return nil
}

// companionLauncher re-executes executable in companion mode. Companions
// show up in ps as "<argv0 basename>-<module>".
func companionLauncher(executable, argv0, abi string, logger *slog.Logger) *companion.ExecLauncher {
	return &companion.ExecLauncher{
		Executable: executable,
		NiceName:   filepath.Base(argv0),
		Env:        []string{archEnvironment + "=" + abi},
		Logger:     logger,
	}
}

func buildStatus(abi string, root *rootimpl.Root, socketName, nativeBridge string, mode module.Mode, modules []*module.Module, started time.Time) statefile.Status {
	status := statefile.Status{
		PID:          os.Getpid(),
		Version:      version.Info(),
		Arch:         abi,
		Provider:     root.Provider().String(),
		Socket:       socketName,
		NativeBridge: nativeBridge,
		LibraryMode:  mode.String(),
		Started:      started.UTC(),
	}
	for _, mod := range modules {
		status.Modules = append(status.Modules, statefile.ModuleStatus{
			Name:   mod.Name,
			Digest: mod.Digest,
		})
	}
	return status
}
