// Package perm defines the permission taxonomy for sandboxed applications.
//
// A Permission is a tagged union: the Kind selects which payload fields are
// meaningful. Every switch over Kind in this module is exhaustive with an
// error default, so adding a new Kind surfaces as a test failure rather than
// silent misbehavior.
package perm

import (
	"fmt"
	"strings"
)

// Kind discriminates the permission union.
type Kind string

const (
	// KindNetwork is network access at a NetworkLevel.
	KindNetwork Kind = "net"

	// KindFilesystem is access to a filesystem path at an AccessMode.
	KindFilesystem Kind = "fs"

	// KindDevice is access to a hardware device.
	KindDevice Kind = "dev"

	// KindClipboard is read/write access to the shared clipboard.
	KindClipboard Kind = "clipboard"

	// KindBackgroundExecution is the right to keep running without a
	// visible window.
	KindBackgroundExecution Kind = "background"

	// KindAutostart is the right to start at session login.
	KindAutostart Kind = "autostart"
)

// NetworkLevel is the scope of network access.
type NetworkLevel string

const (
	// NetNone grants no network access.
	NetNone NetworkLevel = "none"

	// NetLan grants access to the local network only.
	NetLan NetworkLevel = "lan"

	// NetInternet grants unrestricted network access.
	NetInternet NetworkLevel = "internet"
)

// AccessMode is the filesystem access mode.
type AccessMode string

const (
	// ModeReadOnly grants read-only access.
	ModeReadOnly AccessMode = "ro"

	// ModeReadWrite grants full access.
	ModeReadWrite AccessMode = "rw"

	// ModeDeny blocks access to the path outright. A deny-mode
	// permission lets policy carve exclusions out of broader grants.
	ModeDeny AccessMode = "deny"
)

// DeviceKind identifies a hardware device class.
type DeviceKind string

const (
	// DeviceMicrophone is audio capture.
	DeviceMicrophone DeviceKind = "microphone"

	// DeviceCamera is video capture.
	DeviceCamera DeviceKind = "camera"

	// DeviceScreen is screen capture or recording.
	DeviceScreen DeviceKind = "screen"

	// DeviceUSB is raw USB device access.
	DeviceUSB DeviceKind = "usb"
)

// Permission is a single permission an application can hold.
// Only the payload fields selected by Kind are meaningful; the rest are
// zero. Values are comparable and usable as map keys.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type Permission struct {
	Kind   Kind         `json:"kind"`
	Net    NetworkLevel `json:"net,omitempty"`
	Path   string       `json:"path,omitempty"`
	Mode   AccessMode   `json:"mode,omitempty"`
	Device DeviceKind   `json:"device,omitempty"`
}

// Network builds a network permission at the given level.
func Network(level NetworkLevel) Permission {
	return Permission{Kind: KindNetwork, Net: level}
}

// Filesystem builds a filesystem permission for path at mode.
func Filesystem(path string, mode AccessMode) Permission {
	return Permission{Kind: KindFilesystem, Path: path, Mode: mode}
}

// Device builds a device permission.
func Device(d DeviceKind) Permission {
	return Permission{Kind: KindDevice, Device: d}
}

// Clipboard builds a clipboard permission.
func Clipboard() Permission { return Permission{Kind: KindClipboard} }

// BackgroundExecution builds a background-execution permission.
func BackgroundExecution() Permission { return Permission{Kind: KindBackgroundExecution} }

// Autostart builds an autostart permission.
func Autostart() Permission { return Permission{Kind: KindAutostart} }

// Validate checks that the payload fields match the Kind.
func (p Permission) Validate() error {
	switch p.Kind {
	case KindNetwork:
		switch p.Net {
		case NetNone, NetLan, NetInternet:
			return nil
		default:
			return fmt.Errorf("perm: invalid network level %q", p.Net)
		}
	case KindFilesystem:
		if p.Path == "" {
			return fmt.Errorf("perm: filesystem permission requires a path")
		}
		switch p.Mode {
		case ModeReadOnly, ModeReadWrite, ModeDeny:
			return nil
		default:
			return fmt.Errorf("perm: invalid access mode %q", p.Mode)
		}
	case KindDevice:
		switch p.Device {
		case DeviceMicrophone, DeviceCamera, DeviceScreen, DeviceUSB:
			return nil
		default:
			return fmt.Errorf("perm: invalid device %q", p.Device)
		}
	case KindClipboard, KindBackgroundExecution, KindAutostart:
		return nil
	default:
		return fmt.Errorf("perm: unknown kind %q", p.Kind)
	}
}

// Key returns the stable textual encoding of the permission. It is the
// storage key component for policies and the wire form in audit records:
//
//	net:internet
//	fs:rw:/home/user/Documents
//	dev:camera
//	clipboard
//
// Two permissions are the same policy target iff their Keys are equal.
func (p Permission) Key() string {
	switch p.Kind {
	case KindNetwork:
		return string(KindNetwork) + ":" + string(p.Net)
	case KindFilesystem:
		return string(KindFilesystem) + ":" + string(p.Mode) + ":" + p.Path
	case KindDevice:
		return string(KindDevice) + ":" + string(p.Device)
	case KindClipboard, KindBackgroundExecution, KindAutostart:
		return string(p.Kind)
	default:
		// Unknown kinds still need a deterministic string for logging.
		return string(p.Kind)
	}
}

// String returns the Key encoding.
func (p Permission) String() string { return p.Key() }

// ParseKey is the inverse of Key.
func ParseKey(s string) (Permission, error) {
	if s == "" {
		return Permission{}, fmt.Errorf("perm: parse empty key")
	}

	// The filesystem path may itself contain colons, so split at most
	// into kind, mode, and the remainder.
	parts := strings.SplitN(s, ":", 3)
	switch Kind(parts[0]) {
	case KindNetwork:
		if len(parts) != 2 {
			return Permission{}, fmt.Errorf("perm: parse %q: want net:<level>", s)
		}
		p := Network(NetworkLevel(parts[1]))
		if err := p.Validate(); err != nil {
			return Permission{}, err
		}
		return p, nil
	case KindFilesystem:
		if len(parts) != 3 {
			return Permission{}, fmt.Errorf("perm: parse %q: want fs:<mode>:<path>", s)
		}
		p := Filesystem(parts[2], AccessMode(parts[1]))
		if err := p.Validate(); err != nil {
			return Permission{}, err
		}
		return p, nil
	case KindDevice:
		if len(parts) != 2 {
			return Permission{}, fmt.Errorf("perm: parse %q: want dev:<device>", s)
		}
		p := Device(DeviceKind(parts[1]))
		if err := p.Validate(); err != nil {
			return Permission{}, err
		}
		return p, nil
	case KindClipboard, KindBackgroundExecution, KindAutostart:
		if len(parts) != 1 {
			return Permission{}, fmt.Errorf("perm: parse %q: unexpected payload", s)
		}
		return Permission{Kind: Kind(parts[0])}, nil
	default:
		return Permission{}, fmt.Errorf("perm: parse %q: unknown kind %q", s, parts[0])
	}
}

// MustParseKey is like ParseKey but panics on error. Use for literals.
func MustParseKey(s string) Permission {
	p, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// MarshalText implements encoding.TextMarshaler using the Key form.
func (p Permission) MarshalText() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return []byte(p.Key()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(data []byte) error {
	parsed, err := ParseKey(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
