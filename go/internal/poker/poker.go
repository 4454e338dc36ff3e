package poker

import (
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

// Deck is the ordered set of cards a participant may play.
var Deck = []models.CardValue{
	models.CardZero,
	models.CardOne,
	models.CardTwo,
	models.CardThree,
	models.CardFive,
	models.CardEight,
	models.CardThirteen,
	models.CardTwentyOne,
	models.CardUnknown,
}

// IsValidCard reports whether v is part of the Deck.
func IsValidCard(v models.CardValue) bool {
	for _, c := range Deck {
		if c == v {
			return true
		}
	}
	return false
}

// Average returns the mean of the numeric votes, or nil while the votes are
// still hidden. "?" votes are ignored and a round with no numeric votes
// averages to 0.
func Average(votes map[string]models.CardValue, revealed bool) *float64 {
	if !revealed {
		return nil
	}

	var sum float64
	var n int
	for _, v := range votes {
		if v == models.CardUnknown {
			continue
		}
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			continue
		}
		sum += f
		n++
	}

	avg := 0.0
	if n > 0 {
		avg = sum / float64(n)
	}
	return &avg
}

// AllVoted reports whether the room has participants and every one of them
// has a vote recorded.
func AllVoted(participants []string, votes map[string]models.CardValue) bool {
	if len(participants) == 0 {
		return false
	}
	for _, p := range participants {
		if _, ok := votes[p]; !ok {
			return false
		}
	}
	return true
}

// VoteProgress returns how many current participants have voted.
func VoteProgress(participants []string, votes map[string]models.CardValue) (voted, total int) {
	for _, p := range participants {
		if _, ok := votes[p]; ok {
			voted++
		}
	}
	return voted, len(participants)
}

// PruneStaleVotes drops votes whose key is not a current participant.
func PruneStaleVotes(participants []string, votes map[string]models.CardValue) map[string]models.CardValue {
	present := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		present[p] = struct{}{}
	}
	out := make(map[string]models.CardValue, len(votes))
	for k, v := range votes {
		if _, ok := present[k]; ok {
			out[k] = v
		}
	}
	return out
}

// ChatMessages filters messages down to the displayable chat lines:
// non-system, non-empty, with a sender and a parseable timestamp.
func ChatMessages(messages []models.Message) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.Type == models.MessageTypeSystem {
			continue
		}
		if strings.TrimSpace(m.Content) == "" || m.SenderName == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339Nano, m.Timestamp); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
