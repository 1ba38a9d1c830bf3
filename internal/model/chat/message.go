package chat

import "time"

// Role 标识一轮发言的说话人。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance inside a session history. Turns are never mutated once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Scenario  string    `json:"scenario,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTurn builds a user utterance stamped with at.
func UserTurn(text, scenario string, at time.Time) Turn {
	return Turn{Role: RoleUser, Text: text, Scenario: scenario, Timestamp: at}
}

// AssistantTurn builds a tutor reply stamped with at.
func AssistantTurn(text string, at time.Time) Turn {
	return Turn{Role: RoleAssistant, Text: text, Timestamp: at}
}
