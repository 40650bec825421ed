package stream

import (
	"encoding/json"
	"time"
)

const (
	EventLocation = "location"
	EventAlert    = "alert"
	EventTeam     = "team"
	EventSOS      = "sos"
)

// Event is the JSON frame sent to subscribers.
type Event struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, At: time.Now(), Data: raw})
}

func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

// SessionTopic carries location inserts and team messages of a hike session.
func SessionTopic(sessionID string) string {
	return "session:" + sessionID
}

// AlertTopic carries geofence alerts for one participant.
func AlertTopic(sessionID, participantID string) string {
	return "alerts:" + sessionID + ":" + participantID
}
