// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// zygiskd is the privileged daemon behind Zygisk. One instance runs per
// process width (zygiskd32, zygiskd64), started at boot by the loader
// injected into zygote.
//
// At startup it resolves the module ABI from ro.product.cpu.abi,
// detects the root provider (KernelSU or Magisk), loads every enabled
// module library into a sealed memfd, and listens on the abstract
// socket @zygiskd<bits><magic>. Every app process zygote forks then
// connects to ask for the module libraries, its root flags, its module
// directories, or a connection to a module's companion.
//
// Usage:
//
//	zygiskd [--config FILE] [daemon]
//	zygiskd [--config FILE] status [--diagnostic]
//	zygiskd companion FD
//	zygiskd --version
//
// "companion" is not run by hand: the daemon re-executes itself in that
// mode, once per module, with the companion socket on the given fd.
//
// With no --config, the file named by ZYGISKD_CONFIG is used, and with
// neither the built-in defaults apply.
package main
