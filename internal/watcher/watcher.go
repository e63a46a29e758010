package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"ecreceive/internal/dataset"
	"ecreceive/internal/logging"
)

const eventBufferSize = 64 * 1024

// Watcher subscribes to close-write notifications for the spool directory
// and emits the filename of every checksum sidecar written there. The
// sidecar is always written after its data file, so its arrival signals a
// complete dataset.
type Watcher struct {
	dir    string
	jobs   chan<- string
	logger *slog.Logger

	mu     sync.Mutex
	fd     int
	closed bool
}

// New opens an inotify watch on dir. Emitted jobs are sent to the jobs
// channel. The watch is not restartable once closed.
func New(dir string, jobs chan<- string, logger *slog.Logger) (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("watcher: inotify init: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, dir, unix.IN_CLOSE_WRITE); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("watcher: watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:    dir,
		jobs:   jobs,
		logger: logging.NewComponentLogger(logger, "watcher"),
		fd:     fd,
	}, nil
}

// Close releases the inotify handle, unblocking a Run in progress.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return unix.Close(w.fd)
}

// Run reads inotify events and forwards sidecar filenames until ctx is
// cancelled or the watch handle is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching spool directory", logging.String("dir", w.dir))

	stop := context.AfterFunc(ctx, func() {
		_ = w.Close()
	})
	defer stop()

	buf := make([]byte, eventBufferSize)
	for {
		n, err := unix.Read(w.fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			if ctx.Err() != nil || w.isClosed() {
				return nil
			}
			return fmt.Errorf("watcher: read events: %w", err)
		}
		for _, name := range parseEvents(buf[:n]) {
			if !strings.HasSuffix(name, dataset.ChecksumSuffix) {
				continue
			}
			w.logger.Info("sidecar written",
				logging.String(logging.FieldDataset, name),
				logging.String(logging.FieldEventType, "spool_close_write"))
			select {
			case <-ctx.Done():
				return nil
			case w.jobs <- name:
			}
		}
	}
}

func (w *Watcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// parseEvents walks a raw inotify buffer and returns the event filenames.
func parseEvents(buf []byte) []string {
	var names []string
	for offset := 0; offset+unix.SizeofInotifyEvent <= len(buf); {
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(event.Len)
		if nameEnd > len(buf) {
			break
		}
		if event.Len > 0 {
			name := strings.TrimRight(string(buf[nameStart:nameEnd]), "\x00")
			if name != "" {
				names = append(names, name)
			}
		}
		offset = nameEnd
	}
	return names
}
