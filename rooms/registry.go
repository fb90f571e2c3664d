package rooms

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Role is fixed when a participant joins a room.
type Role int

const (
	Viewer Role = iota
	Editor
)

func (r Role) String() string {
	if r == Editor {
		return "editor"
	}
	return "viewer"
}

// Participant is a live connection. The registry compares participants by
// identity, so implementations should be pointer types.
type Participant interface {
	ID() string
	Emit(event string, args ...any) error
}

// Key identifies a room. Connections that sent no title at all share the
// Untitled room, which is distinct from the room of the empty title.
type Key struct {
	Title    string
	Untitled bool
}

// TitleKey returns the key of the room named title.
func TitleKey(title string) Key { return Key{Title: title} }

// UntitledKey is the room of connections without a title.
var UntitledKey = Key{Untitled: true}

func (k Key) fields() logrus.Fields {
	return logrus.Fields{"title": k.Title, "untitled": k.Untitled}
}

// RoomInfo describes one live room.
type RoomInfo struct {
	Title        string `json:"title"`
	Untitled     bool   `json:"untitled,omitempty"`
	Participants int    `json:"participants"`
	Editor       string `json:"editor,omitempty"`
}

// Registry maps a room key to its connected participants in join order.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[Key][]Participant
	editors map[Key]Participant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[Key][]Participant),
		editors: make(map[Key]Participant),
	}
}

// Join appends p to the room and returns Editor when the room had no
// participants before the call.
func (r *Registry) Join(key Key, p Participant) Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := Viewer
	if len(r.rooms[key]) == 0 {
		role = Editor
		r.editors[key] = p
	}
	r.rooms[key] = append(r.rooms[key], p)

	logrus.WithFields(key.fields()).WithFields(logrus.Fields{
		"participant_id": p.ID(),
		"role":           role.String(),
		"participants":   len(r.rooms[key]),
	}).Debug("Participant joined room")
	return role
}

// Leave removes every entry equal to p. Empty rooms are dropped so the next
// joiner becomes the editor.
func (r *Registry) Leave(key Key, p Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rooms[key]
	if !ok {
		return
	}

	remaining := current[:0]
	for _, other := range current {
		if other != p {
			remaining = append(remaining, other)
		}
	}
	// clear the tail so removed participants can be collected
	for i := len(remaining); i < len(current); i++ {
		current[i] = nil
	}

	if r.editors[key] == p {
		delete(r.editors, key)
	}

	if len(remaining) == 0 {
		delete(r.rooms, key)
		delete(r.editors, key)
	} else {
		r.rooms[key] = remaining
	}

	logrus.WithFields(key.fields()).WithFields(logrus.Fields{
		"participant_id": p.ID(),
		"participants":   len(remaining),
	}).Debug("Participant left room")
}

// BroadcastTargets returns the participants of the room other than
// excluding, in join order. The returned slice is a copy.
func (r *Registry) BroadcastTargets(key Key, excluding Participant) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current := r.rooms[key]
	targets := make([]Participant, 0, len(current))
	for _, p := range current {
		if p != excluding {
			targets = append(targets, p)
		}
	}
	return targets
}

// Count returns the number of participants in a room.
func (r *Registry) Count(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[key])
}

// Snapshot lists the live rooms sorted by title, the untitled room after
// the empty title. Editor is the participant that joined the room first and
// is empty once that participant has left.
func (r *Registry) Snapshot() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(r.rooms))
	for key, participants := range r.rooms {
		info := RoomInfo{Title: key.Title, Untitled: key.Untitled, Participants: len(participants)}
		if editor, ok := r.editors[key]; ok {
			info.Editor = editor.ID()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Title == infos[j].Title {
			return !infos[i].Untitled && infos[j].Untitled
		}
		return infos[i].Title < infos[j].Title
	})
	return infos
}
