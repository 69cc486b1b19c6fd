package rules

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Provider hands out the current rule set. Reloads swap the whole struct
// atomically so in-flight events keep a consistent view.
type Provider struct {
	current atomic.Pointer[Rules]
}

// NewProvider creates a Provider serving r.
func NewProvider(r *Rules) *Provider {
	p := &Provider{}
	p.current.Store(r)
	return p
}

// Current returns the rule set in effect. The returned struct must be treated
// as read-only.
func (p *Provider) Current() *Rules {
	return p.current.Load()
}

// Swap replaces the rule set.
func (p *Provider) Swap(r *Rules) {
	p.current.Store(r)
}

// Load reads a YAML rules file layered over the defaults.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	r := Default()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate rules %s: %w", path, err)
	}
	return r, nil
}

// Watch hot-reloads the rules file on change. Invalid files are logged and
// skipped; the previous rule set stays in effect. Call the returned stop
// function to clean up.
func (p *Provider) Watch(path string, log *logrus.Logger) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("rules watcher add %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					r, err := Load(path)
					if err != nil {
						log.WithError(err).Warn("Rules reload failed, keeping previous rules")
						continue
					}
					p.Swap(r)
					log.WithField("path", path).Info("Rules reloaded")
				}
			case <-w.Errors:
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
