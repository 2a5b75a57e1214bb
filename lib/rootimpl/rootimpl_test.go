// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootimpl

import (
	"strings"
	"testing"
)

type fakeBackend struct {
	name       string
	status     Status
	granted    map[int32]bool
	umount     map[int32]bool
	detections int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Detect() Status {
	f.detections++
	return f.status
}

func (f *fakeBackend) UIDGrantedRoot(uid int32) bool  { return f.granted[uid] }
func (f *fakeBackend) UIDShouldUmount(uid int32) bool { return f.umount[uid] }

func TestSetupClassification(t *testing.T) {
	statuses := []Status{Absent, TooOld, Abnormal, Supported}
	for _, kernelSUStatus := range statuses {
		for _, magiskStatus := range statuses {
			kernelSU := &fakeBackend{name: "kernelsu", status: kernelSUStatus}
			magisk := &fakeBackend{name: "magisk", status: magiskStatus}

			root := Setup(kernelSU, magisk)

			want := expectedProvider(kernelSUStatus, magiskStatus)
			if root.Provider() != want {
				t.Errorf("Setup(kernelsu=%s, magisk=%s) = %s, want %s",
					kernelSUStatus, magiskStatus, root.Provider(), want)
			}
			if kernelSU.detections != 1 || magisk.detections != 1 {
				t.Errorf("detections = (%d, %d), want exactly one each",
					kernelSU.detections, magisk.detections)
			}
			wantSupported := want == KernelSU || want == Magisk
			if root.Supported() != wantSupported {
				t.Errorf("Supported() = %v for %s", root.Supported(), want)
			}
		}
	}
}

func expectedProvider(kernelSU, magisk Status) Provider {
	if kernelSU == Absent && magisk == Absent {
		return None
	}
	if kernelSU != Absent && magisk != Absent {
		return Multiple
	}
	status, provider := kernelSU, KernelSU
	if kernelSU == Absent {
		status, provider = magisk, Magisk
	}
	switch status {
	case Supported:
		return provider
	case TooOld:
		return ProviderTooOld
	default:
		return ProviderAbnormal
	}
}

func TestPolicyDispatchesToActiveBackend(t *testing.T) {
	magisk := &fakeBackend{
		name:    "magisk",
		status:  Supported,
		granted: map[int32]bool{0: true},
		umount:  map[int32]bool{10123: true},
	}
	kernelSU := &fakeBackend{name: "kernelsu", status: Absent, granted: map[int32]bool{10123: true}}

	root := Setup(kernelSU, magisk)
	if root.Provider() != Magisk {
		t.Fatalf("Provider = %s, want magisk", root.Provider())
	}
	if !root.UIDGrantedRoot(0) {
		t.Error("UIDGrantedRoot(0) = false, want true")
	}
	if root.UIDGrantedRoot(10123) {
		t.Error("UIDGrantedRoot(10123) = true; answer came from the inactive backend")
	}
	if !root.UIDShouldUmount(10123) {
		t.Error("UIDShouldUmount(10123) = false, want true")
	}
}

func TestPolicyOnUnsupportedProviderPanics(t *testing.T) {
	for _, provider := range []Provider{None, ProviderTooOld, ProviderAbnormal, Multiple} {
		root := &Root{provider: provider}
		for name, query := range map[string]func(int32) bool{
			"UIDGrantedRoot":  root.UIDGrantedRoot,
			"UIDShouldUmount": root.UIDShouldUmount,
		} {
			func() {
				defer func() {
					recovered := recover()
					if recovered == nil {
						t.Errorf("%s with provider %s did not panic", name, provider)
						return
					}
					if !strings.Contains(recovered.(string), provider.String()) {
						t.Errorf("panic message %q does not name provider %s", recovered, provider)
					}
				}()
				query(0)
			}()
		}
	}
}

func TestZeroRootIsNone(t *testing.T) {
	var root Root
	if root.Provider() != None || root.Supported() {
		t.Errorf("zero Root = (%s, supported=%v), want (none, false)", root.Provider(), root.Supported())
	}
}
