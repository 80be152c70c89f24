package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/aliskhannn/image-compressor/internal/model"
	"github.com/aliskhannn/image-compressor/internal/processor"
)

// ErrRootLocked means another process already supervises the watch root.
var ErrRootLocked = errors.New("watch root is locked by another process")

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	LockDir      string // Directory for the per-root lock file; empty disables locking
	ScanExisting bool   // Route images already present under the root at start
}

// Supervisor owns the filesystem subscription of one watch root and feeds its
// Router. Supervisors share no state with each other.
type Supervisor struct {
	root    string
	router  *Router
	watcher *fsnotify.Watcher
	lock    *flock.Flock
	opts    SupervisorOptions
	logger  zerolog.Logger

	ready     chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewSupervisor creates a Supervisor for the router's root. The root must be an existing directory.
func NewSupervisor(router *Router, opts SupervisorOptions, logger zerolog.Logger) (*Supervisor, error) {
	root := router.Root()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	s := &Supervisor{
		root:    root,
		router:  router,
		watcher: watcher,
		opts:    opts,
		logger:  logger.With().Str("component", "watch.supervisor").Str("root", root).Logger(),
		ready:   make(chan struct{}),
	}
	if opts.LockDir != "" {
		s.lock = flock.New(LockPath(opts.LockDir, root))
	}

	return s, nil
}

// LockPath returns the lock file guarding root inside dir.
func LockPath(dir, root string) string {
	sum := sha256.Sum256([]byte(root))
	return filepath.Join(dir, "image-compressor-"+hex.EncodeToString(sum[:8])+".lock")
}

// Root returns the absolute watch root.
func (s *Supervisor) Root() string {
	return s.root
}

// Router returns the router the supervisor feeds.
func (s *Supervisor) Router() *Router {
	return s.router
}

// Ready is closed once Start has subscribed the whole tree.
func (s *Supervisor) Ready() <-chan struct{} {
	return s.ready
}

// Start binds the recursive watch and forwards events until ctx is canceled.
// Before returning it releases the subscription and waits for in-flight compressions.
//
//	go supervisor.Start(ctx)
func (s *Supervisor) Start(ctx context.Context) error {
	if s.lock != nil {
		locked, err := s.lock.TryLock()
		if err != nil {
			_ = s.Close()
			return fmt.Errorf("lock watch root: %w", err)
		}
		if !locked {
			_ = s.Close()
			return fmt.Errorf("%w: %s (%s)", ErrRootLocked, s.root, s.lock.Path())
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to release root lock")
			}
		}()
	}

	initial := model.ChangeKind("")
	if s.opts.ScanExisting {
		initial = model.Created
	}
	if err := s.addTree(ctx, s.root, initial); err != nil {
		_ = s.Close()
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	s.logger.Info().Bool("scan_existing", s.opts.ScanExisting).Msg("started watching directory")
	close(s.ready)

	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing watcher")
		}
		s.router.Wait()
		s.logger.Info().Msg("stopped watching directory")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.handle(ctx, event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// Close releases the OS watch resources. It is safe to call more than once.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.watcher.Close()
	})
	return s.closeErr
}

// handle translates one fsnotify event into a ChangeEvent.
// Removes, renames away and chmods carry no new content and are dropped.
func (s *Supervisor) handle(ctx context.Context, event fsnotify.Event) {
	var kind model.ChangeKind
	switch {
	case event.Has(fsnotify.Create):
		kind = model.Created
	case event.Has(fsnotify.Write):
		kind = model.Modified
	default:
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", event.Name).Msg("event target vanished")
		return
	}

	if info.IsDir() && kind == model.Created {
		// A directory created or moved in may already hold images.
		if err := s.addTree(ctx, event.Name, model.MovedIn); err != nil {
			s.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
		}
	}

	s.router.Route(ctx, model.ChangeEvent{
		Path:  event.Name,
		Kind:  kind,
		IsDir: info.IsDir(),
	})
}

// addTree subscribes dir and every directory below it. When kind is set, the
// images found are routed as kind unless their artifact already exists.
func (s *Supervisor) addTree(ctx context.Context, dir string, kind model.ChangeKind) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			return nil
		}

		if d.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				if path == dir {
					return err
				}
				s.logger.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
				return filepath.SkipDir
			}
			return nil
		}

		if kind == "" {
			return nil
		}
		if _, err := os.Stat(processor.ArtifactPath(path, s.router.Suffix())); err == nil {
			return nil
		}
		s.router.Route(ctx, model.ChangeEvent{Path: path, Kind: kind})

		return nil
	})
}
