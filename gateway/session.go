package gateway

import (
	"context"
	"sync"
	"time"

	"codeshare-server/metrics"
	"codeshare-server/rooms"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of a session.
type State int

const (
	Connecting State = iota
	Joined
	Editing
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case Editing:
		return "editing"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

type event struct {
	update     UpdateCode
	disconnect bool
}

// Session is the per-connection state machine. Events are queued by the
// transport and handled one at a time by the session goroutine.
type Session struct {
	id          string
	room        rooms.Key
	role        rooms.Role
	participant rooms.Participant
	gw          *Gateway

	mu      sync.Mutex
	state   State
	closing bool
	queue   []event
	wake    chan struct{}
	done    chan struct{}
}

func newSession(id string, room rooms.Key, role rooms.Role, p rooms.Participant, g *Gateway) *Session {
	return &Session{
		id:          id,
		room:        room,
		role:        role,
		participant: p,
		gw:          g,
		state:       Joined,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Title is the handshake title; it is empty for the untitled room.
func (s *Session) Title() string { return s.room.Title }

// Room is the registry key the session joined under.
func (s *Session) Room() rooms.Key { return s.room }

func (s *Session) Role() rooms.Role { return s.role }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has left its room.
func (s *Session) Done() <-chan struct{} { return s.done }

// Submit queues an update. It never blocks on the document store.
func (s *Session) Submit(msg UpdateCode) error {
	return s.enqueue(event{update: msg})
}

// Disconnect queues the terminal event. Updates submitted before it are
// still processed; later ones are rejected.
func (s *Session) Disconnect() {
	_ = s.enqueue(event{disconnect: true})
}

func (s *Session) enqueue(ev event) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if ev.disconnect {
		s.closing = true
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Session) next() (event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = event{}
	s.queue = s.queue[1:]
	return ev, true
}

func (s *Session) run() {
	defer close(s.done)
	for range s.wake {
		for {
			ev, ok := s.next()
			if !ok {
				break
			}
			if ev.disconnect {
				s.leave()
				return
			}
			s.handleUpdate(ev.update)
		}
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) handleUpdate(msg UpdateCode) {
	s.setState(Editing)

	log := s.log().WithFields(logrus.Fields{
		"target_title": msg.Title,
		"code_length":  len(msg.UpdatedCode),
	})

	ctx := context.Background()
	if s.gw.opts.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.gw.opts.PersistTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.gw.store.Set(ctx, msg.Title, msg.UpdatedCode); err != nil {
		metrics.ObserveUpdate(metrics.ResultFailed, time.Since(start))
		log.WithError(err).Error("Error updating code")
		return
	}
	metrics.ObserveUpdate(metrics.ResultPersisted, time.Since(start))

	if s.gw.tracker != nil {
		if err := s.gw.tracker.TouchRoom(ctx, msg.Title); err != nil {
			log.WithError(err).Warn("Failed to record room activity")
		}
	}

	targets := s.gw.registry.BroadcastTargets(rooms.TitleKey(msg.Title), s.participant)
	payload := CodeUpdated(msg)
	for _, target := range targets {
		if err := target.Emit(EventCodeUpdated, payload); err != nil {
			log.WithError(err).WithField("recipient_id", target.ID()).Warn("Failed to deliver code update")
		}
	}
	metrics.ObserveFanout(len(targets))
	log.WithField("recipients", len(targets)).Debug("Code update broadcast")
}

func (s *Session) leave() {
	s.gw.registry.Leave(s.room, s.participant)
	s.setState(Disconnected)
	metrics.SessionLeft(s.role.String())
	s.log().Info("Client disconnected")
}

func (s *Session) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"session_id":     s.id,
		"participant_id": s.participant.ID(),
		"title":          s.room.Title,
		"untitled":       s.room.Untitled,
		"role":           s.role.String(),
	})
}
