// Package input provides audit log line feeds: offline replay from a
// saved log file and a live feed reading from an audit bridge process.
package input

// Feed delivers raw audit log lines. The channel closes when the feed
// is exhausted or shut down; Err reports what ended it.
type Feed interface {
	Lines() <-chan string
	Err() error
	Close() error
}
