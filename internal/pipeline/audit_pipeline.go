package pipeline

import (
	"context"
	"time"

	"auditgraph/internal/assembler"
	"auditgraph/internal/input"
	"auditgraph/internal/logger"
)

// AuditPipeline drives audit log lines from a feed through the event
// assembler. Processing is single threaded on purpose: the assembler
// and the syscall handlers behind it carry per-pid state that depends
// on event order.
type AuditPipeline struct {
	feed         input.Feed
	assembler    *assembler.Assembler
	drainTimeout time.Duration
	waitForLog   bool
}

// NewAuditPipeline creates the pipeline. drainTimeout bounds how long
// shutdown waits for already-read lines to finish processing; when
// waitForLog is false cancellation discards in-flight lines instead.
func NewAuditPipeline(feed input.Feed, asm *assembler.Assembler, drainTimeout time.Duration, waitForLog bool) *AuditPipeline {
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	return &AuditPipeline{
		feed:         feed,
		assembler:    asm,
		drainTimeout: drainTimeout,
		waitForLog:   waitForLog,
	}
}

// Run consumes the feed until it is exhausted or the context is
// cancelled. Incomplete buffered events are spilled to the backing
// store on the way out so a checkpoint taken afterwards sees them.
func (p *AuditPipeline) Run(ctx context.Context) error {
	logger.Infof("Audit pipeline started")

	for {
		select {
		case <-ctx.Done():
			if p.waitForLog {
				p.drain()
			}
			p.flush()
			return ctx.Err()
		case line, ok := <-p.feed.Lines():
			if !ok {
				p.flush()
				logger.Infof("Audit feed exhausted")
				return p.feed.Err()
			}
			p.assembler.ParseLine(line)
		}
	}
}

func (p *AuditPipeline) flush() {
	if err := p.assembler.Flush(); err != nil {
		logger.Errorf("Failed to flush buffered events: %v", err)
	}
}

// drain keeps consuming lines already in flight after cancellation,
// bounded by the drain timeout.
func (p *AuditPipeline) drain() {
	deadline := time.NewTimer(p.drainTimeout)
	defer deadline.Stop()

	p.feed.Close()
	for {
		select {
		case line, ok := <-p.feed.Lines():
			if !ok {
				return
			}
			p.assembler.ParseLine(line)
		case <-deadline.C:
			logger.Warnf("Drain timeout reached, discarding remaining feed lines")
			return
		}
	}
}

// Close releases the feed.
func (p *AuditPipeline) Close() error {
	return p.feed.Close()
}
