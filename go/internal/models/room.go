package models

// CardValue is a single planning poker card. The numeric cards follow a
// Fibonacci-like scale and "?" means the voter is unsure.
type CardValue string

const (
	CardZero      CardValue = "0"
	CardOne       CardValue = "1"
	CardTwo       CardValue = "2"
	CardThree     CardValue = "3"
	CardFive      CardValue = "5"
	CardEight     CardValue = "8"
	CardThirteen  CardValue = "13"
	CardTwentyOne CardValue = "21"
	CardUnknown   CardValue = "?"
)

// DefaultRoomName is used when a room is created or restored without a name.
const DefaultRoomName = "Planning Poker"

// RoomState is the authoritative snapshot of a room as broadcast by the server.
type RoomState struct {
	Participants []string             `json:"participants"`
	Votes        map[string]CardValue `json:"votes"`
	Revealed     bool                 `json:"revealed"`
	CurrentTask  *string              `json:"currentTask"`
	Name         string               `json:"name"`
	Messages     []Message            `json:"messages,omitempty"`
}

// NewRoomState returns an empty room with the given display name.
func NewRoomState(name string) RoomState {
	if name == "" {
		name = DefaultRoomName
	}
	return RoomState{
		Participants: []string{},
		Votes:        map[string]CardValue{},
		Name:         name,
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s RoomState) Clone() RoomState {
	out := s
	out.Participants = append([]string{}, s.Participants...)
	out.Votes = make(map[string]CardValue, len(s.Votes))
	for k, v := range s.Votes {
		out.Votes[k] = v
	}
	if s.CurrentTask != nil {
		task := *s.CurrentTask
		out.CurrentTask = &task
	}
	if s.Messages != nil {
		out.Messages = append([]Message{}, s.Messages...)
	}
	return out
}

// HasParticipant reports whether name is currently in the room.
func (s RoomState) HasParticipant(name string) bool {
	for _, p := range s.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// SessionPointer records which room the client was last in.
type SessionPointer struct {
	InRoom   bool   `json:"inRoom"`
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}
