package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/wardenbot/warden/internal/engine"
	"github.com/wardenbot/warden/resources"
)

// Profile bundles the tunable scoring weights and the per-category trend
// playbooks. Profiles layer in order: code defaults, the embedded default
// profile, then the optional operator file. Later layers override field by
// field for weights and category by category for playbooks.
type Profile struct {
	Weights engine.Weights       `yaml:"weights"`
	Trend   engine.TrendProfiles `yaml:"trend"`
}

const embeddedProfile = "profiles/default.yml"

// LoadProfile resolves the layered profile. An empty path skips the
// operator layer.
func LoadProfile(path string) (Profile, error) {
	profile := Profile{
		Weights: engine.DefaultWeights(),
		Trend:   engine.DefaultTrendProfiles(),
	}
	raw, err := resources.FS.ReadFile(embeddedProfile)
	if err != nil {
		return profile, fmt.Errorf("read embedded profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return profile, fmt.Errorf("parse embedded profile: %w", err)
	}
	if path == "" {
		return profile, nil
	}
	raw, err = os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return profile, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return profile, nil
}

// ProfileWatcher serves the current profile and reloads it when the
// operator file changes on disk. Without an operator file it still serves
// the layered defaults and Start is a no-op.
type ProfileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}

	mutex   sync.RWMutex
	current Profile
}

func NewProfileWatcher(path string) (*ProfileWatcher, error) {
	profile, err := LoadProfile(path)
	if err != nil {
		return nil, err
	}
	return &ProfileWatcher{
		path:    path,
		current: profile,
	}, nil
}

// Current returns the most recently loaded profile. A failed reload keeps
// the previous one.
func (pw *ProfileWatcher) Current() Profile {
	pw.mutex.RLock()
	defer pw.mutex.RUnlock()
	return pw.current
}

func (pw *ProfileWatcher) Start(_ context.Context) error {
	if pw.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save
	// and a watch on the old inode goes stale.
	if err := watcher.Add(filepath.Dir(pw.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch profile directory: %w", err)
	}
	pw.watcher = watcher
	pw.done = make(chan struct{})
	go pw.loop()
	return nil
}

func (pw *ProfileWatcher) Stop(ctx context.Context) error {
	if pw.watcher == nil {
		return nil
	}
	if err := pw.watcher.Close(); err != nil {
		return fmt.Errorf("close profile watcher: %w", err)
	}
	select {
	case <-pw.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (pw *ProfileWatcher) loop() {
	defer close(pw.done)
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(pw.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pw.reload()
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("profile watcher error")
		}
	}
}

func (pw *ProfileWatcher) reload() {
	profile, err := LoadProfile(pw.path)
	if err != nil {
		log.WithError(err).WithField("path", pw.path).Error("failed to reload profile, keeping previous")
		return
	}
	pw.mutex.Lock()
	pw.current = profile
	pw.mutex.Unlock()
	log.WithField("path", pw.path).Info("profile reloaded")
}
