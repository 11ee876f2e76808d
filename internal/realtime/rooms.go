package realtime

import (
	"fmt"
	"strings"
)

// RoomKey is an opaque topic name. New kinds of rooms need no schema change.
type RoomKey string

const PresenceRoom RoomKey = "presence"

func ServiceRoom(serviceID int64) RoomKey {
	return RoomKey(fmt.Sprintf("service_%d", serviceID))
}

func DepartmentRoom(name string) RoomKey {
	return RoomKey("department_" + strings.ToLower(strings.TrimSpace(name)))
}

func EntryRoom(entryID string) RoomKey {
	return RoomKey("queue_" + entryID)
}
