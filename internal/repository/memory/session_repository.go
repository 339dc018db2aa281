package memory

import (
	"time"

	"ai-waiter-service/pkg/store"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Sessions idle for an hour are considered abandoned and purged.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

// Save stores a detached copy. Status writes come from handler, event-loop
// and timer goroutines at once; sharing one record across them would race.
func (r *SessionRepository) Save(session *store.Session) {
	cp := *session
	cp.LastActiveAt = time.Now()
	r.cache.Set(cp.ID, &cp, cache.DefaultExpiration)
}

// Get returns a copy the caller may mutate freely; changes only become
// visible through Save.
func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		cp := *(x.(*store.Session))
		return &cp, true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) All() []*store.Session {
	items := r.cache.Items()
	out := make([]*store.Session, 0, len(items))
	for _, it := range items {
		if s, ok := it.Object.(*store.Session); ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}
