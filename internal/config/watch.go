package config

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config whenever the file changes on disk and hands
// each valid new config to onReload. Editors often emit several events
// per save (and some replace the file via rename), so events are
// debounced and matched by basename against the watched directory.
// Parse or validation failures keep the previous config.
func Watch(ctx context.Context, path string, onReload func(Config)) error {
	dir := filepath.Dir(path)
	file := filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	var timerMu sync.Mutex
	var timer *time.Timer
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			cfg, err := Load(path)
			if err != nil {
				log.Printf("[config] reload parse failed: %v", err)
				return
			}
			norm, res := NormalizeAndValidate(cfg)
			if !res.OK() {
				log.Printf("[config] reload rejected: %s", strings.Join(res.Errors, "; "))
				return
			}
			for _, warn := range res.Warnings {
				log.Printf("[config] warning: %s", warn)
			}
			onReload(norm)
			log.Printf("[config] reloaded %s", path)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				log.Printf("[config] watch error: %v", err)
			}
		}
	}
}
