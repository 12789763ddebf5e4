package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultBufferSize = 100

// FSNotifySubscriber watches paths using fsnotify. Directories are
// watched recursively, files are watched through their parent directory
// so that editors replacing the file do not end the watch.
type FSNotifySubscriber struct {
	config Config
	log    *zap.Logger
}

var _ Subscriber = (*FSNotifySubscriber)(nil)

func NewFSNotifySubscriber(config Config, log *zap.Logger) *FSNotifySubscriber {
	return &FSNotifySubscriber{
		config: config,
		log:    log.Named("watch"),
	}
}

func (s *FSNotifySubscriber) Subscribe(ctx context.Context, paths []string) (<-chan Event, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	bufSize := s.config.BufferSize
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	sub := &subscription{
		watcher: fsw,
		ignore:  s.config.Ignore,
		dirs:    make(map[string]bool),
		parents: make(map[string]bool),
		files:   make(map[string]bool),
		events:  make(chan Event, bufSize),
		log:     s.log,
	}

	for _, path := range paths {
		if err := sub.add(path); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	s.log.Info("watching paths",
		zap.Strings("paths", paths),
		zap.Int("directories", len(sub.dirs)),
	)

	go sub.run(ctx)

	return sub.events, nil
}

type subscription struct {
	watcher *fsnotify.Watcher
	ignore  []string

	// dirs are watched recursively, parents only for the files in them
	dirs    map[string]bool
	parents map[string]bool
	files   map[string]bool

	events chan Event

	log *zap.Logger
}

func (s *subscription) add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrPathNotExist, path)
	}
	if err != nil {
		return err
	}

	if info.IsDir() {
		return s.addTree(absPath)
	}

	s.files[absPath] = true

	parent := filepath.Dir(absPath)
	if s.dirs[parent] || s.parents[parent] {
		return nil
	}

	if err := s.watcher.Add(parent); err != nil {
		return fmt.Errorf("failed to watch %s: %w", parent, err)
	}

	s.parents[parent] = true

	return nil
}

func (s *subscription) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// the tree may change while walking it
			s.log.Debug("skipping path", zap.String("path", p), zap.Error(err))
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if p != root && s.ignored(p) {
			return filepath.SkipDir
		}

		if s.dirs[p] {
			return nil
		}

		if err := s.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}

		s.dirs[p] = true

		return nil
	})
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.events)
	defer s.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("subscription cancelled")
			return

		case fsEvent, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			evt, ok := s.handle(fsEvent)
			if !ok {
				continue
			}

			select {
			case s.events <- evt:
			case <-ctx.Done():
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			s.log.Warn("watch error", zap.Error(err))
		}
	}
}

// handle converts an fsnotify event and keeps the watch list up to date.
func (s *subscription) handle(fsEvent fsnotify.Event) (Event, bool) {
	kind, ok := convertOp(fsEvent.Op)
	if !ok {
		return Event{}, false
	}

	path := fsEvent.Name

	if !s.accept(path) || s.ignored(path) {
		return Event{}, false
	}

	switch kind {
	case Create:
		// watch directories created inside a watched tree
		if info, err := os.Stat(path); err == nil && info.IsDir() && s.dirs[filepath.Dir(path)] {
			if err := s.addTree(path); err != nil {
				s.log.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
		}
	case Remove, Rename:
		// the watch of a removed directory is dropped by fsnotify
		delete(s.dirs, path)
	}

	return Event{Kind: kind, Path: path}, true
}

func (s *subscription) accept(path string) bool {
	return s.files[path] || s.dirs[path] || s.dirs[filepath.Dir(path)]
}

func (s *subscription) ignored(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range s.ignore {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
