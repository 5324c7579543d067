package session

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/skirmish/internal/combat/dataapi"
	"github.com/louisbranch/skirmish/internal/combat/storage/sqlite"
)

// Eviction policy for idle sessions. State is durable, so eviction only
// drops the in-memory actor; the next connection rehydrates it.
const (
	defaultIdleTTL   = 30 * time.Minute
	evictionInterval = 5 * time.Minute
)

// Registry routes connections to the singleton session per
// (campaignId, combatId), constructing and hydrating sessions lazily.
type Registry struct {
	dataDir string
	dataAPI *dataapi.Client
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session *Session
	cancel  context.CancelFunc
}

// NewRegistry creates a registry storing one database file per session
// under dataDir.
func NewRegistry(dataDir string, dataAPI *dataapi.Client) *Registry {
	return &Registry{
		dataDir:  dataDir,
		dataAPI:  dataAPI,
		idleTTL:  defaultIdleTTL,
		sessions: make(map[string]*managedSession),
	}
}

// Run evicts idle sessions until ctx is canceled, then tears down every
// remaining session.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.teardownAll()
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

// Get returns the session for the key, starting it on first use. Session
// state is hydrated from its database file, so a session evicted or lost to
// a restart resumes where it stopped.
func (r *Registry) Get(ctx context.Context, campaignID, combatID string) (*Session, error) {
	if campaignID == "" || combatID == "" {
		return nil, fmt.Errorf("campaign and combat ids are required")
	}
	key := campaignID + "/" + combatID

	r.mu.Lock()
	defer r.mu.Unlock()
	if managed, ok := r.sessions[key]; ok {
		return managed.session, nil
	}

	store, err := sqlite.Open(r.databasePath(campaignID, combatID))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	sess := New(Config{
		CampaignID: campaignID,
		CombatID:   combatID,
		Store:      store,
		DataAPI:    r.dataAPI,
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go sess.Run(runCtx)
	r.sessions[key] = &managedSession{session: sess, cancel: cancel}
	log.Printf("registry: session %s started", key)
	return sess, nil
}

func (r *Registry) databasePath(campaignID, combatID string) string {
	name := sanitizeID(campaignID) + "_" + sanitizeID(combatID) + ".db"
	return filepath.Join(r.dataDir, name)
}

// sanitizeID restricts identifiers to a filename-safe alphabet.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// evictIdle stops sessions with no connections and no recent activity.
func (r *Registry) evictIdle() {
	cutoff := time.Now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, managed := range r.sessions {
		if managed.session.ConnectionCount() > 0 {
			continue
		}
		if managed.session.LastActivity().After(cutoff) {
			continue
		}
		managed.cancel()
		delete(r.sessions, key)
		log.Printf("registry: session %s evicted after idle timeout", key)
	}
}

func (r *Registry) teardownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, managed := range r.sessions {
		managed.cancel()
		delete(r.sessions, key)
	}
}

// SessionCount reports live sessions, for the health endpoint.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
