// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootimpl

import "fmt"

// Status is one backend's detection result.
type Status int

const (
	// Absent means the backend is not installed.
	Absent Status = iota
	// TooOld means the backend is installed but older than the minimum
	// version zygiskd supports.
	TooOld
	// Abnormal means the backend answered the probe with a value no
	// supported release produces.
	Abnormal
	// Supported means the backend is installed and can answer policy
	// queries.
	Supported
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case Absent:
		return "absent"
	case TooOld:
		return "too_old"
	case Abnormal:
		return "abnormal"
	case Supported:
		return "supported"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Backend is one root provider's detection probe and uid policy. The
// implementations live in the kernelsu and magisk subpackages.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Detect probes whether the backend is installed and which version
	// is running. Called once per daemon lifetime.
	Detect() Status

	// UIDGrantedRoot reports whether the backend grants root to uid.
	UIDGrantedRoot(uid int32) bool

	// UIDShouldUmount reports whether the backend's denylist covers
	// uid, meaning the process should see an unmodified mount
	// namespace.
	UIDShouldUmount(uid int32) bool
}

// Provider is the classified root provider for this boot.
type Provider int

const (
	None Provider = iota
	ProviderTooOld
	ProviderAbnormal
	Multiple
	KernelSU
	Magisk
)

// String returns the provider name for logging and the status file.
func (p Provider) String() string {
	switch p {
	case None:
		return "none"
	case ProviderTooOld:
		return "too_old"
	case ProviderAbnormal:
		return "abnormal"
	case Multiple:
		return "multiple"
	case KernelSU:
		return "kernelsu"
	case Magisk:
		return "magisk"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Root is the provider classification computed once at startup. The
// zero value is a Root with provider None.
type Root struct {
	provider Provider
	backend  Backend
}

// Setup probes both backends exactly once and classifies the results:
// neither present is None, both present is Multiple, and a single
// present backend maps its status onto the provider.
func Setup(kernelSU, magisk Backend) *Root {
	kernelSUStatus := kernelSU.Detect()
	magiskStatus := magisk.Detect()
	return classify(kernelSU, kernelSUStatus, magisk, magiskStatus)
}

func classify(kernelSU Backend, kernelSUStatus Status, magisk Backend, magiskStatus Status) *Root {
	switch {
	case kernelSUStatus == Absent && magiskStatus == Absent:
		return &Root{provider: None}
	case kernelSUStatus != Absent && magiskStatus != Absent:
		return &Root{provider: Multiple}
	case kernelSUStatus != Absent:
		return single(KernelSU, kernelSU, kernelSUStatus)
	default:
		return single(Magisk, magisk, magiskStatus)
	}
}

func single(provider Provider, backend Backend, status Status) *Root {
	switch status {
	case Supported:
		return &Root{provider: provider, backend: backend}
	case TooOld:
		return &Root{provider: ProviderTooOld}
	default:
		return &Root{provider: ProviderAbnormal}
	}
}

// Provider returns the classified provider.
func (r *Root) Provider() Provider {
	return r.provider
}

// Supported reports whether exactly one supported backend is active,
// which is the precondition for the policy queries.
func (r *Root) Supported() bool {
	return r.backend != nil
}

// UIDGrantedRoot asks the active backend whether uid is granted root.
// Panics unless [Root.Supported] is true.
func (r *Root) UIDGrantedRoot(uid int32) bool {
	return r.active().UIDGrantedRoot(uid)
}

// UIDShouldUmount asks the active backend whether uid is on its
// denylist. Panics unless [Root.Supported] is true.
func (r *Root) UIDShouldUmount(uid int32) bool {
	return r.active().UIDShouldUmount(uid)
}

func (r *Root) active() Backend {
	if r.backend == nil {
		panic(fmt.Sprintf("rootimpl: policy query with unsupported provider %s", r.provider))
	}
	return r.backend
}
