package input

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"auditgraph/internal/logger"
)

// Audit log writes are not ordered by event id, so replay can sort
// before delivery. The key is the (timestamp, event id) pair from the
// msg field.
var eventKeyPattern = regexp.MustCompile(`msg=audit\(([0-9]+)\.([0-9]+):([0-9]+)\)`)

// FileFeed replays a saved audit log file line by line.
type FileFeed struct {
	lines chan string
	done  chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// NewFileFeed opens an audit log for replay. With sortEvents set the
// whole file is read up front and delivered in event order, which
// produces a cleaner graph at the cost of memory proportional to the
// log size.
func NewFileFeed(path string, sortEvents bool) (*FileFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	feed := &FileFeed{
		lines: make(chan string, 1024),
		done:  make(chan struct{}),
	}

	if sortEvents {
		go feed.runSorted(f)
	} else {
		go feed.runStreaming(f)
	}
	return feed, nil
}

// Lines returns the line channel.
func (f *FileFeed) Lines() <-chan string {
	return f.lines
}

// Err reports the error that ended the feed, if any.
func (f *FileFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close stops delivery. The reader goroutine exits on its next send.
func (f *FileFeed) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
	})
	return nil
}

func (f *FileFeed) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *FileFeed) runStreaming(file *os.File) {
	defer close(f.lines)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case f.lines <- scanner.Text():
		case <-f.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		f.setErr(fmt.Errorf("failed to read audit log: %w", err))
	}
}

type keyedLine struct {
	seconds int64
	millis  int64
	eventID int64
	index   int
	line    string
}

func (f *FileFeed) runSorted(file *os.File) {
	defer close(f.lines)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var keyed []keyedLine
	index := 0
	for scanner.Scan() {
		line := scanner.Text()
		entry := keyedLine{index: index, line: line}
		if m := eventKeyPattern.FindStringSubmatch(line); m != nil {
			entry.seconds, _ = strconv.ParseInt(m[1], 10, 64)
			entry.millis, _ = strconv.ParseInt(m[2], 10, 64)
			entry.eventID, _ = strconv.ParseInt(m[3], 10, 64)
		}
		keyed = append(keyed, entry)
		index++
	}
	if err := scanner.Err(); err != nil {
		f.setErr(fmt.Errorf("failed to read audit log: %w", err))
		return
	}

	// Stable by original position so records within one event keep
	// their relative order.
	sort.SliceStable(keyed, func(i, j int) bool {
		a, b := keyed[i], keyed[j]
		if a.seconds != b.seconds {
			return a.seconds < b.seconds
		}
		if a.millis != b.millis {
			return a.millis < b.millis
		}
		if a.eventID != b.eventID {
			return a.eventID < b.eventID
		}
		return a.index < b.index
	})

	logger.Infof("Sorted %d audit log lines for replay", len(keyed))
	for _, entry := range keyed {
		select {
		case f.lines <- entry.line:
		case <-f.done:
			return
		}
	}
}
