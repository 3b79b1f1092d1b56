package watcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"icoforge/src/common"
	"icoforge/src/config"
)

// Watcher regenerates the icon whenever the source image changes
type Watcher struct {
	cfg       *config.Config
	converter *common.Converter
	watcher   *fsnotify.Watcher
	events    chan Event
	deployer  Deployer
	debounce  time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending fsnotify.Op
	started bool
	stopped bool
	done    chan struct{}
}

// Deployer interface for installing a freshly written icon
type Deployer interface {
	Deploy(iconPath string) ([]string, error)
}

// Event represents one handled change of the source image
type Event struct {
	Type     EventType
	FilePath string
	Err      error // conversion or deploy failure, nil on success
}

// EventType represents the type of file event
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// NewWatcher creates a new source image watcher
func NewWatcher(cfg *config.Config) (*Watcher, error) {
	converter, err := cfg.NewConverter()
	if err != nil {
		return nil, fmt.Errorf("failed to create converter: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:       cfg,
		converter: converter,
		watcher:   fsWatcher,
		events:    make(chan Event, 100),
		debounce:  time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		done:      make(chan struct{}),
	}, nil
}

// SetDeployer sets the deployer run after every successful conversion
func (w *Watcher) SetDeployer(d Deployer) {
	w.deployer = d
}

// Start watches the directory holding the source image.
// The directory is watched instead of the file so editors that save by rename are seen.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.cfg.Icon.Input)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", dir, err)
	}
	log.Printf("Watching %s for changes", w.cfg.Icon.Input)

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.processEvents()

	return nil
}

// processEvents filters fsnotify events down to the source image and debounces them
func (w *Watcher) processEvents() {
	defer close(w.done)

	source := filepath.Base(w.cfg.Icon.Input)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != source {
				continue
			}

			w.mu.Lock()
			w.pending |= event.Op
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, w.flush)
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// flush handles the accumulated operations once the source has been quiet
func (w *Watcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	op := w.pending
	w.pending = 0

	var eventType EventType
	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		if _, err := os.Stat(w.cfg.Icon.Input); err == nil {
			// Replaced in place by an editor
			eventType = EventCreated
		} else {
			eventType = EventDeleted
		}
	case op.Has(fsnotify.Create):
		eventType = EventCreated
	case op.Has(fsnotify.Write):
		eventType = EventModified
	default:
		return // Ignore chmod-only events
	}

	event := Event{Type: eventType, FilePath: w.cfg.Icon.Input}

	if eventType == EventDeleted {
		log.Printf("Source image deleted: %s", w.cfg.Icon.Input)
	} else {
		event.Err = w.regenerate()
	}

	select {
	case w.events <- event:
	default:
		log.Printf("Event channel full, dropping %s event", event.Type)
	}
}

// regenerate converts the source and deploys the result
func (w *Watcher) regenerate() error {
	if err := w.converter.Convert(w.cfg.Icon.Input, w.cfg.Icon.Output); err != nil {
		log.Printf("Conversion failed: %v", err)
		return err
	}
	log.Printf("Regenerated %s from %s", w.cfg.Icon.Output, w.cfg.Icon.Input)

	if w.deployer == nil {
		return nil
	}
	if _, err := w.deployer.Deploy(w.cfg.Icon.Output); err != nil {
		log.Printf("Deploy failed: %v", err)
		return err
	}
	return nil
}

// Events returns the event channel
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher and closes the event channel
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	started := w.started
	w.mu.Unlock()

	err := w.watcher.Close()
	if started {
		<-w.done
	}
	close(w.events)
	return err
}
