package domain

// Verification channels. The channel selects the delivery adapter and which
// confirmation flag a successful verify flips on the account.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// VerificationRequest is a pending one-time code keyed by (subject, address).
// CodeHash is a bcrypt hash of the issued code; the plaintext code only ever
// travels through the delivery adapter. At most one live entry exists per key:
// re-issuing overwrites (and thereby invalidates) the previous one.
// ExpiresAt is a Unix timestamp, also used as the DynamoDB TTL attribute.
type VerificationRequest struct {
	SubjectID string `json:"subject_id" dynamodbav:"subject_id"`
	Address   string `json:"address" dynamodbav:"address"`
	Channel   string `json:"channel" dynamodbav:"channel"`
	CodeHash  string `json:"code_hash" dynamodbav:"code_hash"`
	IssuedAt  int64  `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
