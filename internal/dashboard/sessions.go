package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/board"
)

const (
	sessionIdle  = 15 * time.Minute
	sweepPeriod  = time.Minute
	loadDeadline = 10 * time.Second
)

// session is one actor's live board.
type session struct {
	role     string
	ctrl     *board.Controller
	lastUsed time.Time
}

// sessions keeps a board controller per actor so optimistic state and the
// change feed survive between requests.
type sessions struct {
	srv *Server

	mu sync.Mutex
	m  map[string]*session
}

func newSessions(srv *Server) *sessions {
	return &sessions{srv: srv, m: make(map[string]*session)}
}

// get returns actor's controller, creating and loading it on first use. A
// role change replaces the controller.
func (s *sessions) get(ctx context.Context, actor access.Actor) (*board.Controller, error) {
	s.mu.Lock()
	if sess, ok := s.m[actor.ID]; ok {
		if sess.role == actor.Role {
			sess.lastUsed = time.Now()
			s.mu.Unlock()
			return sess.ctrl, nil
		}
		sess.ctrl.Close()
		delete(s.m, actor.ID)
	}
	s.mu.Unlock()

	ctrl, err := s.srv.newController(actor)
	if err != nil {
		return nil, err
	}
	loadCtx, cancel := context.WithTimeout(ctx, loadDeadline)
	defer cancel()
	if err := ctrl.Load(loadCtx); err != nil {
		ctrl.Close()
		return nil, err
	}
	if s.srv.hub != nil {
		if err := ctrl.Subscribe(s.srv.baseCtx); err != nil {
			s.srv.logger.Warn().Err(err).Str("actor", actor.ID).Msg("board feed unavailable")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[actor.ID]; ok && existing.role == actor.Role {
		// Lost a race with a concurrent request for the same actor.
		ctrl.Close()
		existing.lastUsed = time.Now()
		return existing.ctrl, nil
	}
	s.m[actor.ID] = &session{role: actor.Role, ctrl: ctrl, lastUsed: time.Now()}
	return ctrl, nil
}

// drop closes actor's controller if one exists.
func (s *sessions) drop(actorID string) {
	s.mu.Lock()
	sess, ok := s.m[actorID]
	delete(s.m, actorID)
	s.mu.Unlock()
	if ok {
		sess.ctrl.Close()
	}
}

// sweep closes controllers idle for longer than sessionIdle until ctx is
// done, then closes the rest.
func (s *sessions) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case now := <-ticker.C:
			s.evictIdle(now)
		}
	}
}

func (s *sessions) evictIdle(now time.Time) int {
	s.mu.Lock()
	var idle []*session
	for id, sess := range s.m {
		if now.Sub(sess.lastUsed) > sessionIdle {
			idle = append(idle, sess)
			delete(s.m, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range idle {
		sess.ctrl.Close()
	}
	return len(idle)
}

func (s *sessions) closeAll() {
	s.mu.Lock()
	all := s.m
	s.m = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.ctrl.Close()
	}
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
