package events

import "github.com/crystal-mush/gomuck/pkg/gamedb"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // Raw text (universal fallback)
	EvNotify                      // NOTIFY / NOTIFY_EXCLUDE output
	EvEcho                        // $echo from the preprocessor
	EvForce                       // FORCE of a command on another object
	EvError                       // A failed program run surfaced to its actor
	EvConnect                     // Player connected
	EvDisconnect                  // Player disconnected
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvNotify:
		return "notify"
	case EvEcho:
		return "echo"
	case EvForce:
		return "force"
	case EvError:
		return "error"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is a structured game event that flows through the event bus.
type Event struct {
	Type    EventType
	Player  gamedb.DBRef   // Recipient (Nothing for broadcast)
	Source  gamedb.DBRef   // Who generated the event (program or actor)
	Room    gamedb.DBRef   // Room context for room-wide notifies
	Text    string         // Pre-formatted text
	Data    map[string]any // Structured extras (forced command, error kind)
}
