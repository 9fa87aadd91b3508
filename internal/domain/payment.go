package domain

import "time"

// Payment processor identifiers accepted by the connect flow.
const (
	ProcessorMercadoPago = "mercadopago"
	ProcessorStripe      = "stripe"
)

// PaymentAccount is a payment-processor account connected to a user via OAuth.
type PaymentAccount struct {
	AccountID          string     `json:"id" dynamodbav:"account_id"`
	UserID             string     `json:"user_id" dynamodbav:"user_id"`
	Processor          string     `json:"processor" dynamodbav:"processor"`
	ProcessorAccountID string     `json:"processor_account_id" dynamodbav:"processor_account_id"`
	AccessToken        string     `json:"-" dynamodbav:"access_token"`
	RefreshToken       string     `json:"-" dynamodbav:"refresh_token"`
	TokenExpiresAt     *time.Time `json:"token_expires_at,omitempty" dynamodbav:"token_expires_at"`
	Scope              string     `json:"scope,omitempty" dynamodbav:"scope"`
	Status             string     `json:"status" dynamodbav:"status"` // "active" | "revoked"
	CreatedAt          time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt          time.Time  `json:"updated" dynamodbav:"updated_at"`
}
