package site

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/letmevibethatforyou/contentx/pipeline"
	"github.com/segmentio/ksuid"
)

// DefaultSessionTTL is how long a rendered page may take to open its
// preview socket.
const DefaultSessionTTL = time.Hour

// pendingSession is what a preview page's socket needs to rebuild the
// page's query.
type pendingSession struct {
	req     pipeline.Request
	token   string
	expires time.Time
}

// sessionStore remembers rendered preview pages by session id until their
// TTL runs out.
type sessionStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	ttl      time.Duration
	sessions map[string]pendingSession
}

func newSessionStore(c clock.Clock, ttl time.Duration) *sessionStore {
	return &sessionStore{
		clock:    c,
		ttl:      ttl,
		sessions: make(map[string]pendingSession),
	}
}

// add stores req and returns its new session id. Expired sessions are
// pruned on the way.
func (s *sessionStore) add(req pipeline.Request, token string) string {
	id := ksuid.New().String()
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.sessions {
		if now.After(v.expires) {
			delete(s.sessions, k)
		}
	}
	s.sessions[id] = pendingSession{req: req, token: token, expires: now.Add(s.ttl)}
	return id
}

// get returns the session with id while it has not expired. A reconnecting
// socket finds the same session again.
func (s *sessionStore) get(id string) (pendingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.sessions[id]
	if !ok {
		return pendingSession{}, false
	}
	if s.clock.Now().After(p.expires) {
		delete(s.sessions, id)
		return pendingSession{}, false
	}
	return p, true
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
