package perm

import "testing"

func TestValidate(t *testing.T) {
	valid := []Permission{
		Network(NetNone),
		Network(NetLan),
		Network(NetInternet),
		Filesystem("/home/user/docs", ModeReadOnly),
		Filesystem("/tmp", ModeReadWrite),
		Filesystem("/home/user/.ssh", ModeDeny),
		Device(DeviceCamera),
		Device(DeviceUSB),
		Clipboard(),
		BackgroundExecution(),
		Autostart(),
	}
	for _, p := range valid {
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate(%v) = %v, want nil", p, err)
		}
	}

	invalid := []Permission{
		{},
		{Kind: "bogus"},
		{Kind: KindNetwork, Net: "dialup"},
		{Kind: KindNetwork},
		{Kind: KindFilesystem, Mode: ModeReadOnly},
		{Kind: KindFilesystem, Path: "/etc", Mode: "x"},
		{Kind: KindDevice, Device: "floppy"},
		{Kind: KindDevice},
	}
	for _, p := range invalid {
		if err := p.Validate(); err == nil {
			t.Fatalf("Validate(%+v) = nil, want error", p)
		}
	}
}

func TestKeyRoundTrip(t *testing.T) {
	perms := []Permission{
		Network(NetNone),
		Network(NetInternet),
		Filesystem("/home/user", ModeReadOnly),
		Filesystem("/data/with:colon", ModeReadWrite),
		Filesystem("/home/user/.gnupg", ModeDeny),
		Device(DeviceMicrophone),
		Device(DeviceScreen),
		Clipboard(),
		BackgroundExecution(),
		Autostart(),
	}
	for _, p := range perms {
		key := p.Key()
		back, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%q) = %v", key, err)
		}
		if back != p {
			t.Fatalf("ParseKey(%q) = %+v, want %+v", key, back, p)
		}
	}
}

func TestKeyEncoding(t *testing.T) {
	cases := []struct {
		p    Permission
		want string
	}{
		{Network(NetInternet), "net:internet"},
		{Network(NetNone), "net:none"},
		{Filesystem("/home/user", ModeReadWrite), "fs:rw:/home/user"},
		{Filesystem("/home/user/.ssh", ModeDeny), "fs:deny:/home/user/.ssh"},
		{Device(DeviceCamera), "dev:camera"},
		{Clipboard(), "clipboard"},
		{BackgroundExecution(), "background"},
		{Autostart(), "autostart"},
	}
	for _, c := range cases {
		if got := c.p.Key(); got != c.want {
			t.Fatalf("Key(%+v) = %q, want %q", c.p, got, c.want)
		}
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{
		"",
		"net",
		"net:dialup",
		"fs",
		"fs:rw",
		"fs:x:/etc",
		"dev",
		"dev:floppy",
		"clipboard:extra",
		"unknown:stuff",
	} {
		if _, err := ParseKey(key); err == nil {
			t.Fatalf("ParseKey(%q) = nil error, want error", key)
		}
	}
}

func TestFilesystemPathWithColons(t *testing.T) {
	p := Filesystem("/mnt/c:/Users", ModeReadOnly)
	back, err := ParseKey(p.Key())
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if back.Path != "/mnt/c:/Users" {
		t.Fatalf("Path = %q, want %q", back.Path, "/mnt/c:/Users")
	}
}

func TestTextMarshaling(t *testing.T) {
	p := Device(DeviceMicrophone)
	data, err := p.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var back Permission
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back != p {
		t.Fatalf("round trip = %+v, want %+v", back, p)
	}

	bad := Permission{Kind: "bogus"}
	if _, err := bad.MarshalText(); err == nil {
		t.Fatal("MarshalText of invalid permission = nil error, want error")
	}
}
