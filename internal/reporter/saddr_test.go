package reporter

import (
	"testing"

	"auditgraph/internal/artifact"
)

func TestParseSaddrIPv4(t *testing.T) {
	identity, ok := parseSaddr("02001F907F000001", "connect")
	if !ok {
		t.Fatalf("expected the IPv4 saddr to parse")
	}
	if identity.Kind != artifact.KindNetworkSocket {
		t.Fatalf("unexpected kind: %v", identity.Kind)
	}
	if identity.DestinationHost != "127.0.0.1" || identity.DestinationPort != "8080" {
		t.Fatalf("unexpected destination: %s:%s", identity.DestinationHost, identity.DestinationPort)
	}
	if identity.SourceHost != "" || identity.SourcePort != "" {
		t.Fatalf("connect must not fill source fields")
	}
}

func TestParseSaddrIPv4AcceptFillsSource(t *testing.T) {
	identity, ok := parseSaddr("0200C3507F000001", "accept")
	if !ok {
		t.Fatalf("expected the IPv4 saddr to parse")
	}
	if identity.SourceHost != "127.0.0.1" || identity.SourcePort != "50000" {
		t.Fatalf("unexpected source: %s:%s", identity.SourceHost, identity.SourcePort)
	}
	if identity.DestinationHost != "" || identity.DestinationPort != "" {
		t.Fatalf("accept must not fill destination fields")
	}
}

func TestParseSaddrIPv6(t *testing.T) {
	saddr := "0A000050" + "0000000000000000000000000000" + "FFFF" + "7F000001"
	identity, ok := parseSaddr(saddr, "connect")
	if !ok {
		t.Fatalf("expected the IPv6 saddr to parse")
	}
	if identity.DestinationHost != "::ffff:127.0.0.1" {
		t.Fatalf("unexpected host: %q", identity.DestinationHost)
	}
	if identity.DestinationPort != "80" {
		t.Fatalf("unexpected port: %q", identity.DestinationPort)
	}
}

func TestParseSaddrUnix(t *testing.T) {
	// "/tmp/sock" hex-encoded, null terminated.
	identity, ok := parseSaddr("01002F746D702F736F636B00", "bind")
	if !ok {
		t.Fatalf("expected the unix saddr to parse")
	}
	if identity.Kind != artifact.KindUnixSocket {
		t.Fatalf("unexpected kind: %v", identity.Kind)
	}
	if identity.Path != "/tmp/sock" {
		t.Fatalf("unexpected path: %q", identity.Path)
	}
}

func TestParseSaddrRejectsGarbage(t *testing.T) {
	for _, saddr := range []string{"", "0", "0300", "0200ZZ"} {
		if _, ok := parseSaddr(saddr, "connect"); ok {
			t.Fatalf("saddr %q must not parse", saddr)
		}
	}
}
