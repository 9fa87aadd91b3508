package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	UserID         string     `json:"id" dynamodbav:"user_id"`
	Name           string     `json:"name" dynamodbav:"name"`
	Email          string     `json:"email" dynamodbav:"email"`
	EmailConfirmed bool       `json:"email_confirmed" dynamodbav:"email_confirmed"`
	Phone          *string    `json:"phone,omitempty" dynamodbav:"phone"`
	PhoneConfirmed bool       `json:"phone_confirmed" dynamodbav:"phone_confirmed"`
	Role           string     `json:"role" dynamodbav:"role"`
	IsAnonymous    bool       `json:"is_anonymous,omitempty" dynamodbav:"is_anonymous"`
	AvatarURL      string     `json:"avatar_url,omitempty" dynamodbav:"avatar_url"`
	AuthProvider   string     `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "email" | "google" | "anonymous"
	GoogleSub      string     `json:"-"                       dynamodbav:"google_sub"`
	Enable         bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type CreateUserRequest struct {
	Name  string  `json:"name" validate:"required"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone" validate:"omitempty,e164"`
}

type UpdateUserRequest struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone" validate:"omitempty,e164"`
	AvatarURL *string `json:"avatar_url"`
}
