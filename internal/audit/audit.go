package audit

import "time"

// Status classifies a state transition. Marker returns the prefix posted to
// the audit channel; the circle colors follow the markers the community's
// moderators already watch for.
type Status string

const (
	StatusStarted Status = "started" // issuance began
	StatusSuccess Status = "success" // redemption completed, roles granted
	StatusWarning Status = "warning" // cooldown rejection, duplicate attempt
	StatusBlocked Status = "blocked" // blacklisted kerb
	StatusFailure Status = "failure" // transport failure (email, discord)
	StatusInfo    Status = "info"    // reconciliation updates, no marker
)

// Marker is the plain-text status indicator prefixed to the audit line.
func (s Status) Marker() string {
	switch s {
	case StatusStarted:
		return ":white_circle:"
	case StatusSuccess:
		return ":green_circle:"
	case StatusWarning:
		return ":yellow_circle:"
	case StatusBlocked:
		return ":red_circle:"
	case StatusFailure:
		return ":warning:"
	default:
		return ""
	}
}

// Event is the persisted form of one audit line.
type Event struct {
	EventID   string    `json:"event_id" dynamodbav:"event_id"`
	Status    Status    `json:"status" dynamodbav:"status"`
	Message   string    `json:"message" dynamodbav:"message"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}
