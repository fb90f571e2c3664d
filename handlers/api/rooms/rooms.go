package rooms

import (
	"net/http"
	"sort"

	"codeshare-server/core"
	"codeshare-server/rooms"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// RoomEntry is one row of the room listing. Rooms known only to the tracker
// have zero users.
type RoomEntry struct {
	Title      string `json:"title"`
	Untitled   bool   `json:"untitled,omitempty"`
	Users      int    `json:"users"`
	Editor     string `json:"editor,omitempty"`
	LastActive *int64 `json:"lastActive,omitempty"`
}

// HandleList merges the live rooms in registry with the activity recorded by
// tracker. tracker may be nil.
func HandleList(registry *rooms.Registry, tracker core.RoomTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomMap := make(map[rooms.Key]*RoomEntry)

		for _, info := range registry.Snapshot() {
			key := rooms.Key{Title: info.Title, Untitled: info.Untitled}
			roomMap[key] = &RoomEntry{
				Title:    info.Title,
				Untitled: info.Untitled,
				Users:    info.Participants,
				Editor:   info.Editor,
			}
		}

		if tracker != nil {
			if stored, err := tracker.ListRooms(r.Context()); err != nil {
				logrus.WithError(err).Warn("failed to list rooms from tracker")
			} else {
				for _, room := range stored {
					key := rooms.TitleKey(room.Title)
					entry, exists := roomMap[key]
					if !exists {
						entry = &RoomEntry{Title: room.Title}
						roomMap[key] = entry
					}
					if room.LastActive > 0 {
						lastActive := room.LastActive
						entry.LastActive = &lastActive
					}
				}
			}
		}

		roomList := make([]RoomEntry, 0, len(roomMap))
		for _, entry := range roomMap {
			roomList = append(roomList, *entry)
		}
		sortRooms(roomList)

		render.JSON(w, r, roomList)
	}
}

// sortRooms orders by user count, then most recent activity, then title,
// with the untitled room after the empty title.
func sortRooms(roomList []RoomEntry) {
	sort.Slice(roomList, func(i, j int) bool {
		if roomList[i].Users == roomList[j].Users {
			li := lastActive(roomList[i])
			lj := lastActive(roomList[j])
			if li == lj {
				if roomList[i].Title == roomList[j].Title {
					return !roomList[i].Untitled && roomList[j].Untitled
				}
				return roomList[i].Title < roomList[j].Title
			}
			return li > lj
		}
		return roomList[i].Users > roomList[j].Users
	})
}

func lastActive(e RoomEntry) int64 {
	if e.LastActive == nil {
		return 0
	}
	return *e.LastActive
}
