package main

import (
	"context"
	"log"
	"sync"
	"time"

	"htrweb/pkg/htr"
	"htrweb/pkg/metrics"
)

// sessionMaxIdle is how long an untouched session keeps its scratch files.
const sessionMaxIdle = 2 * time.Hour

// session is one client's scratch workspace plus its active pipeline. Engine
// runs for a session are serialized through mu so concurrent requests cannot
// interleave writes under the same outputs tree.
type session struct {
	ID       string
	ws       *htr.Workspace
	mu       sync.Mutex
	spec     *htr.PipelineSpec
	warning  string
	lastUsed time.Time
}

type sessionStore struct {
	mu      sync.RWMutex
	items   map[string]*session
	maxIdle time.Duration
}

func newSessionStore(maxIdle time.Duration) *sessionStore {
	return &sessionStore{items: make(map[string]*session), maxIdle: maxIdle}
}

// create allocates a workspace and seeds the session with the default
// pipeline, export already bound to the workspace.
func (s *sessionStore) create(lang string) (*session, error) {
	ws, err := htr.NewWorkspace()
	if err != nil {
		return nil, err
	}
	spec := htr.DefaultPipeline()
	applyLanguage(spec, lang)
	spec.BindExport(ws.OutputDir())

	sess := &session{ID: ws.ID, ws: ws, spec: spec, lastUsed: time.Now()}
	s.mu.Lock()
	s.items[sess.ID] = sess
	s.mu.Unlock()
	metrics.SessionsActive.Inc()
	return sess, nil
}

// get returns the session and marks it used.
func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.items[id]
	s.mu.RUnlock()
	if ok {
		sess.mu.Lock()
		sess.lastUsed = time.Now()
		sess.mu.Unlock()
	}
	return sess, ok
}

// remove drops the session and deletes its scratch tree.
func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if ok {
		sess.ws.Remove()
		metrics.SessionsActive.Dec()
	}
}

// sweep removes sessions idle past maxIdle.
func (s *sessionStore) sweep() {
	cutoff := time.Now().Add(-s.maxIdle)
	s.mu.Lock()
	var expired []*session
	for id, sess := range s.items {
		// a session busy with an engine run is not idle; skip it rather
		// than block the store on its mutex
		if !sess.mu.TryLock() {
			continue
		}
		stale := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if stale {
			expired = append(expired, sess)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		log.Printf("session %s expired, removing workspace", sess.ID)
		sess.ws.Remove()
		metrics.SessionsActive.Dec()
	}
}

func (s *sessionStore) janitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep()
		}
	}
}

// applyLanguage pins the recognition language on the TextRecognition step.
func applyLanguage(spec *htr.PipelineSpec, lang string) {
	if lang == "" {
		return
	}
	for i := range spec.Steps {
		if spec.Steps[i].Name != htr.StepTextRecognition {
			continue
		}
		if spec.Steps[i].Settings == nil {
			spec.Steps[i].Settings = map[string]any{}
		}
		spec.Steps[i].Settings["lang"] = lang
	}
}
