package domain

import "time"

// CodeLength is the number of alphanumeric characters in a verification code.
const CodeLength = 7

// CodeTTL bounds code validity. Expiry is enforced by the storage layer's TTL
// mechanism; repos additionally treat expired-but-not-yet-reaped items as gone
// because DynamoDB TTL deletion is lazy.
const CodeTTL = 600 * time.Second

// VerificationCode is the ephemeral record tying an emailed code to the kerb
// it was requested for and the Discord account that requested it.
// PK: kerb. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type VerificationCode struct {
	Kerb      string    `json:"kerb" dynamodbav:"kerb"`
	DiscordID string    `json:"discord_id" dynamodbav:"discord_id"`
	Alum      bool      `json:"alum" dynamodbav:"alum"`
	Code      string    `json:"verification_code" dynamodbav:"verification_code"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether the code's TTL has passed. DynamoDB reaps expired
// items eventually, not immediately, so reads must check this themselves.
func (v *VerificationCode) Expired(now time.Time) bool {
	return v.ExpiresAt < now.Unix()
}

// VerifiedUser is the durable record created by a successful redemption.
// PK: kerb; a discord_id GSI serves account-keyed lookups. At most one record
// per kerb and one per Discord account.
type VerifiedUser struct {
	Kerb       string    `json:"kerb" dynamodbav:"kerb"`
	DiscordID  string    `json:"discord_id" dynamodbav:"discord_id"`
	Alum       bool      `json:"alum" dynamodbav:"alum"`
	Verified   bool      `json:"verified" dynamodbav:"verified"`
	VerifiedAt time.Time `json:"verified_at" dynamodbav:"verified_at"`
	// LastRoleUpdate is nil for records written before role reconciliation
	// existed; nil means always eligible for reconciliation.
	LastRoleUpdate *time.Time `json:"last_role_update,omitempty" dynamodbav:"last_role_update,omitempty"`
}
