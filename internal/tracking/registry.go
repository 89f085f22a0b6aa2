package tracking

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RegistryEntry points at the tracker currently connected for a beat plan.
type RegistryEntry struct {
	SessionID      string `json:"sessionId"`
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
}

// Registry is a best-effort routing cache from beat plan to the connected
// tracker. It is advisory only: the Store stays authoritative and the
// registry can always be rebuilt from it. A nil redis client keeps the
// registry process-local, matching how the stream hub degrades.
type Registry struct {
	mu     sync.RWMutex
	byPlan map[string]RegistryEntry
	redis  *redis.Client
}

func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{
		byPlan: map[string]RegistryEntry{},
		redis:  rdb,
	}
}

func (r *Registry) Track(ctx context.Context, beatPlanID string, e RegistryEntry) {
	r.mu.Lock()
	r.byPlan[beatPlanID] = e
	r.mu.Unlock()

	if r.redis != nil {
		payload, _ := json.Marshal(e)
		if err := r.redis.Set(ctx, registryKey(beatPlanID), payload, 0).Err(); err != nil {
			log.Printf("registry redis set error: %v", err)
		}
	}
}

func (r *Registry) Untrack(ctx context.Context, beatPlanID string) {
	r.mu.Lock()
	delete(r.byPlan, beatPlanID)
	r.mu.Unlock()

	if r.redis != nil {
		if err := r.redis.Del(ctx, registryKey(beatPlanID)).Err(); err != nil {
			log.Printf("registry redis del error: %v", err)
		}
	}
}

// Lookup resolves the connected tracker for a plan, checking the local map
// first and the redis mirror second. A miss is not an error; callers must
// fall back to the Store.
func (r *Registry) Lookup(ctx context.Context, beatPlanID string) (RegistryEntry, bool) {
	r.mu.RLock()
	e, ok := r.byPlan[beatPlanID]
	r.mu.RUnlock()
	if ok {
		return e, true
	}

	if r.redis != nil {
		payload, err := r.redis.Get(ctx, registryKey(beatPlanID)).Bytes()
		if err == nil {
			if json.Unmarshal(payload, &e) == nil {
				return e, true
			}
		}
	}
	return RegistryEntry{}, false
}

// Rebuild repopulates the local map from open sessions read off the Store,
// e.g. after a process restart.
func (r *Registry) Rebuild(ctx context.Context, sessions []Session) {
	r.mu.Lock()
	r.byPlan = make(map[string]RegistryEntry, len(sessions))
	for _, s := range sessions {
		r.byPlan[s.BeatPlanID] = RegistryEntry{
			SessionID:      s.ID,
			UserID:         s.UserID,
			OrganizationID: s.OrganizationID,
		}
	}
	r.mu.Unlock()

	if r.redis != nil {
		for _, s := range sessions {
			payload, _ := json.Marshal(RegistryEntry{
				SessionID:      s.ID,
				UserID:         s.UserID,
				OrganizationID: s.OrganizationID,
			})
			if err := r.redis.Set(ctx, registryKey(s.BeatPlanID), payload, 0).Err(); err != nil {
				log.Printf("registry redis set error: %v", err)
			}
		}
	}
}

func registryKey(beatPlanID string) string {
	return "registry:beatplan:" + beatPlanID
}
