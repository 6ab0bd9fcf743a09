// Package filekeeper stores key-value records as JSON files in one directory.
package filekeeper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/drstein77/productcatalog/internal/storage"
	"github.com/fsnotify/fsnotify"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

const ext = ".json"

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

type Keeper struct {
	mx  sync.Mutex
	dir string
	log Log
}

// New creates dir when missing and returns a keeper rooted there.
func New(dir string, log Log) (*Keeper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Keeper{dir: dir, log: log}, nil
}

func (k *Keeper) Dir() string {
	return k.dir
}

func (k *Keeper) path(key string) string {
	return filepath.Join(k.dir, key+ext)
}

func (k *Keeper) Get(_ context.Context, key string) (string, bool, error) {
	k.mx.Lock()
	defer k.mx.Unlock()
	return k.read(key)
}

func (k *Keeper) read(key string) (string, bool, error) {
	b, err := os.ReadFile(k.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(b), true, nil
}

// Update reads the current value, applies fn and replaces the file atomically.
func (k *Keeper) Update(_ context.Context, key string, fn func(string, bool) (string, error)) error {
	k.mx.Lock()
	defer k.mx.Unlock()

	current, ok, err := k.read(key)
	if err != nil {
		return err
	}
	next, err := fn(current, ok)
	if errors.Is(err, storage.ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	if ok && next == current {
		return nil
	}
	if err := atomic.WriteFile(k.path(key), strings.NewReader(next)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (k *Keeper) Ping(context.Context) bool {
	info, err := os.Stat(k.dir)
	return err == nil && info.IsDir()
}

func (k *Keeper) Close() bool {
	return true
}

// Watch calls onChange with the key of every record written by any process
// until ctx is done.
func (k *Keeper) Watch(ctx context.Context, onChange func(key string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(k.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", k.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}
				name := filepath.Base(event.Name)
				if !strings.HasSuffix(name, ext) {
					continue
				}
				onChange(strings.TrimSuffix(name, ext))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				k.log.Error("store watcher failed", zap.Error(err))
			}
		}
	}()
	return nil
}
