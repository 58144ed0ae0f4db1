package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/auriclehq/auricle/pkg/provider/chat"
	"github.com/auriclehq/auricle/pkg/provider/stt"
	"github.com/auriclehq/auricle/pkg/provider/vad"
	"github.com/auriclehq/auricle/pkg/provider/wake"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	wake map[string]func(WakeConfig) (wake.Detector, error)
	vad  map[string]func(VADConfig) (vad.Engine, error)
	stt  map[string]func(STTConfig) (stt.Transcriber, error)
	chat map[string]func(ProviderEntry) (chat.Responder, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		wake: make(map[string]func(WakeConfig) (wake.Detector, error)),
		vad:  make(map[string]func(VADConfig) (vad.Engine, error)),
		stt:  make(map[string]func(STTConfig) (stt.Transcriber, error)),
		chat: make(map[string]func(ProviderEntry) (chat.Responder, error)),
	}
}

// RegisterWake registers a wake detector factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterWake(name string, factory func(WakeConfig) (wake.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wake[name] = factory
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(VADConfig) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, factory func(STTConfig) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterChat registers a chat responder factory under name.
func (r *Registry) RegisterChat(name string, factory func(ProviderEntry) (chat.Responder, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[name] = factory
}

// CreateWake instantiates a wake detector using the factory registered under
// cfg.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateWake(cfg WakeConfig) (wake.Detector, error) {
	r.mu.RLock()
	factory, ok := r.wake[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: wake/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateVAD instantiates a VAD engine using the factory registered under
// cfg.Name.
func (r *Registry) CreateVAD(cfg VADConfig) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateSTT instantiates a transcriber using the factory registered under
// cfg.Name.
func (r *Registry) CreateSTT(cfg STTConfig) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateChat instantiates a chat responder using the factory registered under
// entry.Name.
func (r *Registry) CreateChat(entry ProviderEntry) (chat.Responder, error) {
	r.mu.RLock()
	factory, ok := r.chat[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: chat/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
