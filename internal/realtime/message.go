package realtime

import "time"

// Message types pushed to clients.
const (
	TypeInitialData    = "initial_data"
	TypePong           = "pong"
	TypeLikeUpdate     = "like_update"
	TypePeriodicUpdate = "periodic_update"
)

// Message is the JSON envelope written to every connection.
type Message struct {
	Type        string `json:"type"`
	Data        any    `json:"data,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	ActiveUsers *int   `json:"active_users,omitempty"`
}

// LikeUpdate is the payload of a like_update message.
type LikeUpdate struct {
	EmployeeID string `json:"employee_id"`
	Liked      bool   `json:"liked"`
	Timestamp  string `json:"timestamp"`
}

func formatTimestamp(moment time.Time) string {
	return moment.UTC().Format(time.RFC3339Nano)
}

func nonNilCounts(counts map[string]int) map[string]int {
	if counts == nil {
		return map[string]int{}
	}
	return counts
}

// NewInitialData builds the snapshot sent when a connection opens.
func NewInitialData(counts map[string]int, now time.Time) Message {
	return Message{Type: TypeInitialData, Data: nonNilCounts(counts), Timestamp: formatTimestamp(now)}
}

// NewPong answers a client ping.
func NewPong(now time.Time) Message {
	return Message{Type: TypePong, Timestamp: formatTimestamp(now)}
}

// NewLikeUpdate announces a committed peer review.
func NewLikeUpdate(employeeID string, liked bool, now time.Time) Message {
	return Message{
		Type: TypeLikeUpdate,
		Data: LikeUpdate{EmployeeID: employeeID, Liked: liked, Timestamp: formatTimestamp(now)},
	}
}

// NewPeriodicUpdate carries a fresh snapshot and the number of distinct connected users.
func NewPeriodicUpdate(counts map[string]int, activeUsers int, now time.Time) Message {
	return Message{
		Type:        TypePeriodicUpdate,
		Data:        nonNilCounts(counts),
		Timestamp:   formatTimestamp(now),
		ActiveUsers: &activeUsers,
	}
}
