package input

import (
	"bufio"
	"fmt"
	"os/exec"
	"sync"

	"auditgraph/internal/logger"
)

// LiveFeed reads audit lines from the stdout of a bridge process that
// subscribes to the kernel audit socket, such as audispd piped through
// a dispatcher plugin.
type LiveFeed struct {
	cmd   *exec.Cmd
	lines chan string
	done  chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// NewLiveFeed launches the bridge command and starts consuming its
// output.
func NewLiveFeed(command string, args ...string) (*LiveFeed, error) {
	cmd := exec.Command(command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audit bridge: %w", err)
	}
	logger.Infof("Audit bridge started: %s (pid %d)", command, cmd.Process.Pid)

	feed := &LiveFeed{
		cmd:   cmd,
		lines: make(chan string, 1024),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(feed.lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case feed.lines <- scanner.Text():
			case <-feed.done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			feed.setErr(fmt.Errorf("failed to read audit bridge output: %w", err))
		}
	}()
	return feed, nil
}

// Lines returns the line channel.
func (f *LiveFeed) Lines() <-chan string {
	return f.lines
}

// Err reports the error that ended the feed, if any.
func (f *LiveFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close stops the bridge process and the reader.
func (f *LiveFeed) Close() error {
	var killErr error
	f.closeOnce.Do(func() {
		close(f.done)
		if f.cmd.Process != nil {
			killErr = f.cmd.Process.Kill()
		}
		// Reap the child; the error is expected after a kill.
		f.cmd.Wait()
	})
	return killErr
}

func (f *LiveFeed) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}
