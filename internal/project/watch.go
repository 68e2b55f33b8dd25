package project

import (
	"os"
	"sync"
	"time"
)

// Watcher polls a set of files and calls a callback whenever one of them is
// modified, created or removed. It lets a job be rerun as its inputs are
// edited.
type Watcher struct {
	paths         []string
	checkInterval time.Duration
	onChange      func(path string)

	mu       sync.Mutex
	modTimes map[string]time.Time
	stopCh   chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher for paths. Missing files are watched for
// creation.
func NewWatcher(checkInterval time.Duration, paths ...string) *Watcher {
	w := &Watcher{
		paths:         paths,
		checkInterval: checkInterval,
		modTimes:      make(map[string]time.Time, len(paths)),
	}
	w.ResetBaseline()
	return w
}

// OnChange sets the callback. It runs on the watcher goroutine; a slow
// callback delays the next poll.
func (w *Watcher) OnChange(callback func(path string)) {
	w.onChange = callback
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	// Create fresh channels in case we're restarting
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.watchLoop()
}

// Stop stops the watcher goroutine and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.done
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if path, ok := w.checkForUpdate(); ok && w.onChange != nil {
				w.onChange(path)
			}
		}
	}
}

// checkForUpdate returns the first path whose modification time differs from
// the baseline and records the new time.
func (w *Watcher) checkForUpdate() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, path := range w.paths {
		mod := modTime(path)
		if !mod.Equal(w.modTimes[path]) {
			w.modTimes[path] = mod
			return path, true
		}
	}
	return "", false
}

// ResetBaseline records the current modification times as unchanged.
func (w *Watcher) ResetBaseline() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, path := range w.paths {
		w.modTimes[path] = modTime(path)
	}
}

// modTime returns the zero time for files that cannot be read.
func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
