// Package watch monitors an acquisition directory and enqueues an assembly
// job once new artifacts stop arriving.
package watch

import (
	"fmt"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"sinogen/internal/fsutil"
	"sinogen/internal/pipeline"
)

// DefaultSettle is the quiet period after the last artifact event before a
// job is enqueued. Acquisitions write one artifact per scan line, so a
// single settle window batches the whole scan.
const DefaultSettle = 2 * time.Second

// Watcher debounces artifact creation events into assembly jobs.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *slog.Logger
	enqueue func(pipeline.Job) error
	dir     string
	settle  time.Duration
	options map[string]any
	done    chan struct{}
	seq     int
}

// New builds a Watcher over dir. Jobs are handed to enqueue, normally the
// pipeline's Submit, carrying the given assembly options.
func New(dir string, settle time.Duration, enqueue func(pipeline.Job) error, options map[string]any, log *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		watcher: fw,
		log:     log,
		enqueue: enqueue,
		dir:     dir,
		settle:  settle,
		options: options,
		done:    make(chan struct{}),
	}, nil
}

// Start begins monitoring. It returns once the watch is registered.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching acquisition directory", "dir", w.dir, "settle", w.settle)
	go w.run()
	return nil
}

// Stop ends monitoring.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !fsutil.IsArtifact(event.Name) {
				continue
			}
			w.log.Debug("artifact event", "path", event.Name, "op", event.Op.String())
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.settle)
			pending = true

		case <-timer.C:
			pending = false
			w.submit()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) submit() {
	w.seq++
	job := pipeline.Job{
		ID:        fmt.Sprintf("watch-%d-%d", time.Now().Unix(), w.seq),
		Type:      pipeline.JobAssemble,
		InputPath: w.dir,
		Options:   w.options,
	}
	if err := w.enqueue(job); err != nil {
		w.log.Error("enqueue failed", "job", job.ID, "error", err)
		return
	}
	w.log.Info("scan settled, assembly queued", "job", job.ID, "dir", w.dir)
}
