package artifact

import "testing"

func TestPathNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/tmp/x", "/tmp/x"},
		{"//tmp//x", "/tmp/x"},
		{"////tmp///x", "/tmp/x"},
	}
	for _, c := range cases {
		if got := File(c.in).Path; got != c.want {
			t.Fatalf("File(%q).Path = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIdentityKeysDisambiguateKinds(t *testing.T) {
	if File("/tmp/x").Key() == NamedPipe("/tmp/x").Key() {
		t.Fatalf("file and named pipe on the same path must not share a key")
	}
	if File("/tmp/x").Key() == UnixSocket("/tmp/x").Key() {
		t.Fatalf("file and unix socket on the same path must not share a key")
	}
}

func TestUnnamedPipeAnnotations(t *testing.T) {
	id := UnnamedPipe("42", "3", "4")
	a := id.Annotations()
	if a["path"] != "pipe[3-4]" {
		t.Fatalf("unexpected pipe path annotation: %q", a["path"])
	}
	if a["pid"] != "42" {
		t.Fatalf("unexpected pid annotation: %q", a["pid"])
	}
	if a["subtype"] != SubtypePipe {
		t.Fatalf("unexpected subtype: %q", a["subtype"])
	}
}

func TestUnknownAnnotations(t *testing.T) {
	a := Unknown("42", "7").Annotations()
	if a["path"] != "/unknown/42_7" {
		t.Fatalf("unexpected unknown path annotation: %q", a["path"])
	}
}

func TestNetworkSocketAnnotations(t *testing.T) {
	id := NetworkSocket("10.0.0.1", "51000", "10.0.0.2", "80", "tcp")
	a := id.Annotations()
	if a["source host"] != "10.0.0.1" || a["source port"] != "51000" {
		t.Fatalf("unexpected source annotations: %v", a)
	}
	if a["destination host"] != "10.0.0.2" || a["destination port"] != "80" {
		t.Fatalf("unexpected destination annotations: %v", a)
	}
}

func TestHasPath(t *testing.T) {
	if !File("/a").HasPath() || !NamedPipe("/a").HasPath() || !UnixSocket("/a").HasPath() {
		t.Fatalf("path-based identities must report HasPath")
	}
	if UnnamedPipe("1", "3", "4").HasPath() || Memory("1", "ff", "10").HasPath() || Unknown("1", "3").HasPath() {
		t.Fatalf("non-path identities must not report HasPath")
	}
}
