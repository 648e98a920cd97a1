package reporter

import (
	"fmt"
	"strconv"
	"strings"

	"auditgraph/internal/artifact"
)

// parseSaddr decodes the hex-encoded sockaddr captured in a SOCKADDR
// record. The second hex digit carries the address family: 1 for unix
// domain sockets, 2 for IPv4 and A for IPv6. For bind and connect the
// address is the remote end and lands in the destination fields; for
// accept it is the peer and lands in the source fields.
func parseSaddr(saddr, syscall string) (artifact.Identity, bool) {
	if len(saddr) < 2 {
		return artifact.Identity{}, false
	}

	if saddr[1] == '1' {
		path := parseUnixSaddrPath(saddr)
		if path == "" {
			return artifact.Identity{}, false
		}
		return artifact.UnixSocket(path), true
	}

	var host, port string
	switch saddr[1] {
	case '2':
		if len(saddr) < 16 {
			return artifact.Identity{}, false
		}
		portValue, err := strconv.ParseInt(saddr[4:8], 16, 32)
		if err != nil {
			return artifact.Identity{}, false
		}
		octets := make([]string, 4)
		for i := 0; i < 4; i++ {
			octet, err := strconv.ParseInt(saddr[8+i*2:10+i*2], 16, 32)
			if err != nil {
				return artifact.Identity{}, false
			}
			octets[i] = strconv.FormatInt(octet, 10)
		}
		host = strings.Join(octets, ".")
		port = strconv.FormatInt(portValue, 10)
	case 'A', 'a':
		if len(saddr) < 48 {
			return artifact.Identity{}, false
		}
		portValue, err := strconv.ParseInt(saddr[4:8], 16, 32)
		if err != nil {
			return artifact.Identity{}, false
		}
		octets := make([]int64, 4)
		for i := 0; i < 4; i++ {
			octet, err := strconv.ParseInt(saddr[40+i*2:42+i*2], 16, 32)
			if err != nil {
				return artifact.Identity{}, false
			}
			octets[i] = octet
		}
		host = fmt.Sprintf("::%s:%d.%d.%d.%d", strings.ToLower(saddr[36:40]), octets[0], octets[1], octets[2], octets[3])
		port = strconv.FormatInt(portValue, 10)
	default:
		return artifact.Identity{}, false
	}

	if syscall == "accept" || syscall == "accept4" {
		return artifact.NetworkSocket(host, port, "", "", ""), true
	}
	return artifact.NetworkSocket("", "", host, port, ""), true
}

// parseUnixSaddrPath extracts the socket path from a unix family
// sockaddr. The path starts at the first slash and runs to the first
// null byte; abstract socket names have no slash and are not handled.
func parseUnixSaddrPath(saddr string) string {
	start := strings.Index(saddr, "2F")
	if start == -1 || start%2 != 0 {
		return ""
	}
	var path strings.Builder
	for i := start; i+2 <= len(saddr); i += 2 {
		pair := saddr[i : i+2]
		if pair == "00" {
			break
		}
		value, err := strconv.ParseInt(pair, 16, 16)
		if err != nil {
			return ""
		}
		path.WriteByte(byte(value))
	}
	return path.String()
}
