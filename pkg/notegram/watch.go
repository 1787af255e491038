package notegram

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/himanishpuri/NoteGram/pkg/utils"
)

type settled struct {
	path string
	gen  int
}

// Watch processes every .wav file created or rewritten in dir until ctx is
// cancelled. A file is picked up once no event has touched it for the
// debounce interval, so half-copied files are not read. Files are
// processed one at a time without cropping; failures are logged and the
// watch goes on.
func (s *notegramService) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	s.log.Infof("Watching %s for WAV files", dir)

	ready := make(chan settled)
	timers := make(map[string]*time.Timer)
	gens := make(map[string]int)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !utils.HasExt(event.Name, ".wav") || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				continue
			}

			path := event.Name
			gens[path]++
			gen := gens[path]
			if t := timers[path]; t != nil {
				t.Stop()
			}
			timers[path] = time.AfterFunc(s.config.WatchDebounce, func() {
				select {
				case ready <- settled{path: path, gen: gen}:
				case <-ctx.Done():
				}
			})

		case f := <-ready:
			// a later event restarted the clock
			if f.gen != gens[f.path] {
				continue
			}
			delete(timers, f.path)
			if _, err := s.ProcessFile(ctx, f.path, 0); err != nil {
				s.log.Errorf("Failed to process %s: %v", f.path, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warnf("Watcher error: %v", err)
		}
	}
}
