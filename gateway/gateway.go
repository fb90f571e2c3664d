package gateway

import (
	"errors"
	"time"

	"codeshare-server/core"
	"codeshare-server/metrics"
	"codeshare-server/rooms"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Event names of the collaboration protocol.
const (
	EventReadOnlyStatus = "readOnlyStatus"
	EventUpdateCode     = "updateCode"
	EventCodeUpdated    = "codeUpdated"
)

var (
	ErrMissingTitle  = errors.New("title is required")
	ErrSessionClosed = errors.New("session is disconnected")
)

type (
	// ReadOnlyStatus is sent to every participant that joins an occupied room.
	ReadOnlyStatus struct {
		ReadOnly bool `json:"readOnly"`
	}

	// UpdateCode is sent by a client after editing a document.
	UpdateCode struct {
		Title       string `json:"title"`
		UpdatedCode string `json:"updatedCode"`
	}

	// CodeUpdated is fanned out to the other members of the room.
	CodeUpdated struct {
		Title       string `json:"title"`
		UpdatedCode string `json:"updatedCode"`
	}

	// Handshake carries the connection parameters read at connect time.
	// HasTitle is false when the client sent no title at all; such clients
	// share one room that is not the room of the empty title.
	Handshake struct {
		Title    string
		HasTitle bool
	}

	// Options tunes connection handling.
	Options struct {
		// RequireTitle rejects connections whose handshake has no title.
		// When false they share the untitled room.
		RequireTitle bool
		// PersistTimeout bounds each document store write. Zero disables it.
		PersistTimeout time.Duration
	}
)

// Gateway mediates between client connections, the room registry and the
// document store.
type Gateway struct {
	registry *rooms.Registry
	store    core.DocumentStore
	tracker  core.RoomTracker
	opts     Options
}

// New returns a gateway that records room activity when store also
// implements core.RoomTracker.
func New(registry *rooms.Registry, store core.DocumentStore, opts Options) *Gateway {
	g := &Gateway{
		registry: registry,
		store:    store,
		opts:     opts,
	}
	if tracker, ok := store.(core.RoomTracker); ok {
		g.tracker = tracker
	}
	return g
}

// Connect registers p in the room named by the handshake and starts its
// session loop.
func (g *Gateway) Connect(hs Handshake, p rooms.Participant) (*Session, error) {
	if !hs.HasTitle && g.opts.RequireTitle {
		logrus.WithField("participant_id", p.ID()).Warn("Rejecting connection without title")
		return nil, ErrMissingTitle
	}

	room := rooms.TitleKey(hs.Title)
	if !hs.HasTitle {
		room = rooms.UntitledKey
	}

	role := g.registry.Join(room, p)
	s := newSession(ulid.Make().String(), room, role, p, g)

	log := s.log()
	log.Info("Client connected")
	metrics.SessionJoined(role.String())

	if role == rooms.Viewer {
		if err := p.Emit(EventReadOnlyStatus, ReadOnlyStatus{ReadOnly: false}); err != nil {
			log.WithError(err).Warn("Failed to send read-only status")
		}
	}

	go s.run()
	return s, nil
}
