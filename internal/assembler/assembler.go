package assembler

import (
	"encoding/hex"
	"regexp"
	"strings"

	"auditgraph/internal/cache"
	"auditgraph/internal/logger"
	"auditgraph/internal/metrics"
)

var (
	recordStartPattern = regexp.MustCompile(`(?:node=(\S+) )?type=(\S+) msg=audit\(([0-9.]+):([0-9]+)\):\s*`)
	keyValuePattern    = regexp.MustCompile(`(\w+)=("[^"]*"|[^\s]+)`)
	cwdPattern         = regexp.MustCompile(`cwd=(".+"|[a-zA-Z0-9]+)`)
	pathPattern        = regexp.MustCompile(`item=([0-9]*) name=(".+"|[a-zA-Z0-9]+) .*nametype=([a-zA-Z]*)`)
)

// Handler receives a finalized multi-record event keyed by audit field
// names. The map is owned by the handler for the duration of the call.
type Handler func(event map[string]string)

// Assembler folds single audit records into complete events. Records
// sharing an event id accumulate into one attribute map held in the
// bounded event buffer until the closing record finalizes the event.
type Assembler struct {
	buffer  *cache.BoundedCache[map[string]string]
	handler Handler

	// Unsupported record types are logged once each.
	unsupportedSeen map[string]bool
}

// New creates an assembler over the given event buffer.
func New(buffer *cache.BoundedCache[map[string]string], handler Handler) *Assembler {
	return &Assembler{
		buffer:          buffer,
		handler:         handler,
		unsupportedSeen: make(map[string]bool),
	}
}

// ParseLine folds one raw audit log line into the event buffer,
// finalizing the event when the line closes it.
func (a *Assembler) ParseLine(line string) {
	metrics.LinesRead.Inc()

	start := recordStartPattern.FindStringSubmatchIndex(line)
	if start == nil {
		metrics.LinesUnparseable.Inc()
		logger.Warnf("Unable to match line: %s", line)
		return
	}

	groups := recordStartPattern.FindStringSubmatch(line)
	recordType := groups[2]
	time := groups[3]
	eventID := groups[4]
	messageData := line[start[1]:]

	event, ok, err := a.buffer.Get(eventID)
	if err != nil {
		logger.Errorf("Event buffer read failed for event id %s: %v", eventID, err)
		return
	}
	if !ok {
		event = map[string]string{"eventid": eventID}
	}

	finalize := false
	switch recordType {
	case "SYSCALL":
		for key, value := range parseKeyValues(messageData) {
			event[key] = value
		}
		event["time"] = time
	case "EOE":
		finalize = true
	case "CWD":
		if m := cwdPattern.FindStringSubmatch(messageData); m != nil {
			event["cwd"] = decodePathValue(m[1])
		}
	case "PATH":
		if m := pathPattern.FindStringSubmatch(messageData); m != nil {
			event["path"+m[1]] = decodePathValue(m[2])
			event["nametype"+m[1]] = m[3]
		}
	case "EXECVE":
		for key, value := range parseKeyValues(messageData) {
			event["execve_"+key] = value
		}
	case "SOCKETCALL":
		for key, value := range parseKeyValues(messageData) {
			event["socketcall_"+key] = value
		}
	case "FD_PAIR", "SOCKADDR", "MMAP":
		for key, value := range parseKeyValues(messageData) {
			event[key] = value
		}
	case "NETFILTER_PKT":
		for key, value := range parseKeyValues(messageData) {
			event[key] = value
		}
		finalize = true
	case "PROCTITLE":
		// Not used for graph construction.
	default:
		if !a.unsupportedSeen[recordType] {
			a.unsupportedSeen[recordType] = true
			logger.Warnf("Unknown record type %s for message: %s. Not logging this type again.", recordType, line)
		}
	}

	if finalize {
		a.finishEvent(eventID, event, ok)
		return
	}
	if err := a.buffer.Put(eventID, event); err != nil {
		logger.Errorf("Event buffer write failed for event id %s: %v", eventID, err)
	}
}

// Flush finalizes nothing but spills the buffer, used at checkpoint.
func (a *Assembler) Flush() error {
	return a.buffer.Flush()
}

func (a *Assembler) finishEvent(eventID string, event map[string]string, buffered bool) {
	// Self-terminating records carry their attributes on the closing
	// line, so an unbuffered event is only empty when a bare EOE arrives.
	if !buffered && len(event) <= 1 {
		logger.Warnf("Event close for event id %s received with no prior event info", eventID)
		return
	}
	metrics.EventsFinalized.Inc()
	a.handler(event)
	if buffered {
		if err := a.buffer.Remove(eventID); err != nil {
			logger.Errorf("Event buffer remove failed for event id %s: %v", eventID, err)
		}
	}
}

func parseKeyValues(messageData string) map[string]string {
	out := make(map[string]string)
	for _, m := range keyValuePattern.FindAllStringSubmatch(messageData, -1) {
		out[m[1]] = strings.Trim(m[2], `"`)
	}
	return out
}

// decodePathValue handles audit path fields, which arrive either as a
// quoted string or as a hex-encoded byte sequence.
func decodePathValue(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return strings.Trim(value, `"`)
	}
	return DecodeHexUTF8(value)
}

// DecodeHexUTF8 decodes a hex-encoded audit string, dropping any
// trailing null byte.
func DecodeHexUTF8(value string) string {
	data, err := hex.DecodeString(value)
	if err != nil {
		return value
	}
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return string(data)
}
