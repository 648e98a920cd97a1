package reporter

import (
	"auditgraph/internal/artifact"
	"auditgraph/internal/logger"
	"auditgraph/pkg/models"
)

// handleIOEvent routes read/write style syscalls by the class of the
// descriptor they operate on. Socket descriptors go through the network
// handlers, everything else through the file handlers.
func (r *Reporter) handleIOEvent(name string, event map[string]string) {
	pid := event["pid"]
	fd := event["a0"]

	identity, ok := r.descriptors.Get(pid, fd)
	if !ok {
		identity = r.descriptors.AddUnknown(pid, fd)
		r.markNewEpoch(identity, event["eventid"])
	}

	if identity.Kind == artifact.KindNetworkSocket || identity.Kind == artifact.KindUnixSocket {
		if !r.cfg.NetIO {
			return
		}
		switch name {
		case "write", "writev", "pwrite64", "send", "sendto", "sendmsg":
			r.handleSend(event, name)
		default:
			r.handleRecv(event, name)
		}
		return
	}

	if !r.cfg.FileIO {
		return
	}
	switch name {
	case "write", "writev", "pwrite64":
		r.handleWrite(event, name)
	case "read", "readv", "pread64":
		r.handleRead(event, name)
	default:
		// send/recv variants on a non-socket descriptor carry no file
		// provenance.
		logger.Debugf("Ignoring %s on non-socket descriptor. event id %s", name, event["eventid"])
	}
}

func (r *Reporter) handleSend(event map[string]string, name string) {
	pid := event["pid"]
	fd := event["a0"]
	bytesSent := event["exit"]

	identity, ok := r.descriptors.Get(pid, fd)
	if !ok {
		identity = r.descriptors.AddUnknown(pid, fd)
		r.markNewEpoch(identity, event["eventid"])
	}
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return
	}

	process := r.putProcess(event, false)
	sentArtifact := r.putArtifact(event, identity, true, "")

	wgb := models.NewEdge(models.EdgeWasGeneratedBy, sentArtifact, process)
	wgb.AddEventInfo(event["time"], event["eventid"], r.operation(name), models.SourceAudit)
	wgb.Add(models.AnnotationSize, bytesSent)
	r.putEdge(wgb)
}

func (r *Reporter) handleRecv(event map[string]string, name string) {
	pid := event["pid"]
	fd := event["a0"]
	bytesReceived := event["exit"]

	identity, ok := r.descriptors.Get(pid, fd)
	if !ok {
		identity = r.descriptors.AddUnknown(pid, fd)
		r.markNewEpoch(identity, event["eventid"])
	}
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return
	}

	process := r.putProcess(event, false)
	receivedArtifact := r.putArtifact(event, identity, false, "")

	used := models.NewEdge(models.EdgeUsed, process, receivedArtifact)
	used.AddEventInfo(event["time"], event["eventid"], r.operation(name), models.SourceAudit)
	used.Add(models.AnnotationSize, bytesReceived)
	r.putEdge(used)
}

func (r *Reporter) handleBind(event map[string]string, name string) {
	// Records: SYSCALL, SOCKADDR, EOE.
	identity, ok := parseSaddr(event["saddr"], name)
	if !ok {
		logger.Infof("Unable to process saddr in bind. event id %s", event["eventid"])
		return
	}
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return
	}
	// The address is remembered on the socket descriptor for accept to
	// merge later. No provenance to draw yet.
	r.descriptors.Add(event["pid"], event["a0"], identity)
}

func (r *Reporter) handleConnect(event map[string]string) {
	// Records: SYSCALL, SOCKADDR, EOE.
	identity, ok := parseSaddr(event["saddr"], "connect")
	if !ok {
		logger.Infof("Unable to process saddr in connect. event id %s", event["eventid"])
		return
	}
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return
	}

	r.markNewEpoch(identity, event["eventid"])
	r.descriptors.Add(event["pid"], event["a0"], identity)

	process := r.putProcess(event, false)
	socketArtifact := r.putArtifact(event, identity, false, "")

	wgb := models.NewEdge(models.EdgeWasGeneratedBy, socketArtifact, process)
	wgb.AddEventInfo(event["time"], event["eventid"], r.operation("connect"), models.SourceAudit)
	r.putEdge(wgb)
}

func (r *Reporter) handleAccept(event map[string]string, name string) {
	// Records: SYSCALL, SOCKADDR, EOE. The remote end comes from the
	// SOCKADDR record, the local end from the address bound earlier on
	// the listening socket.
	pid := event["pid"]
	listenFD := event["a0"]
	acceptedFD := event["exit"]

	identity, parsedOK := parseSaddr(event["saddr"], name)
	if parsedOK && identity.Kind == artifact.KindUnixSocket {
		if !r.cfg.UnixSockets {
			return
		}
	} else {
		var srcHost, srcPort string
		if parsedOK {
			srcHost = identity.SourceHost
			srcPort = identity.SourcePort
		}
		var dstHost, dstPort string
		if bound, ok := r.descriptors.Get(pid, listenFD); ok && bound.Kind == artifact.KindNetworkSocket {
			dstHost = bound.DestinationHost
			dstPort = bound.DestinationPort
		}
		identity = artifact.NetworkSocket(srcHost, srcPort, dstHost, dstPort, "")
	}

	r.markNewEpoch(identity, event["eventid"])
	r.descriptors.Add(pid, acceptedFD, identity)

	process := r.putProcess(event, false)
	socketArtifact := r.putArtifact(event, identity, false, "")

	used := models.NewEdge(models.EdgeUsed, process, socketArtifact)
	used.AddEventInfo(event["time"], event["eventid"], r.operation(name), models.SourceAudit)
	r.putEdge(used)
}
