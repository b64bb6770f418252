// Package models holds the wire types exchanged with the platform backend.
package models

// Role is the account role assigned by the backend.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the account as returned by /auth and /user endpoints.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Points      int       `json:"points"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Role        Role      `json:"role,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   Timestamp `json:"createdAt,omitzero"`
	UpdatedAt   Timestamp `json:"updatedAt,omitzero"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// AuthResult is the data of a successful login.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// ProfileUpdate is the body of PUT /user/profile; empty fields are left unchanged.
type ProfileUpdate struct {
	Email       string `json:"email,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// AiFunction is one entry of the server function catalog.
type AiFunction struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Enabled     bool   `json:"enabled"`
	Category    string `json:"category"`
}

// Known function keys.
const (
	FunctionChat             = "chat"
	FunctionTextGeneration   = "text-generation"
	FunctionCodeGeneration   = "code-generation"
	FunctionDocumentSummary  = "document-summary"
	FunctionImageRecognition = "image-recognition"
	FunctionSpeechToText     = "speech-to-text"
	FunctionMovieClip        = "movie-clip"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionRecharge TransactionType = "RECHARGE"
	TransactionConsume  TransactionType = "CONSUME"
	TransactionRefund   TransactionType = "REFUND"
	TransactionBonus    TransactionType = "BONUS"
)

// Transaction is one points ledger entry.
type Transaction struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	Type         TransactionType `json:"type"`
	Amount       int             `json:"amount"`
	BalanceAfter int             `json:"balanceAfter"`
	Description  string          `json:"description,omitempty"`
	AiFunction   string          `json:"aiFunction,omitempty"`
	CreatedAt    Timestamp       `json:"createdAt,omitzero"`
}

// TransactionPage is a page of ledger entries.
type TransactionPage struct {
	Items []Transaction `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

// UsageStatus is the outcome of one AI call.
type UsageStatus string

const (
	UsageSuccess    UsageStatus = "SUCCESS"
	UsageFailed     UsageStatus = "FAILED"
	UsageProcessing UsageStatus = "PROCESSING"
)

// AiUsage is a record of one AI function call.
type AiUsage struct {
	ID              int64       `json:"id"`
	FunctionName    string      `json:"functionName"`
	InputData       string      `json:"inputData,omitempty"`
	OutputData      string      `json:"outputData,omitempty"`
	PointsConsumed  int         `json:"pointsConsumed"`
	ExecutionTimeMs int64       `json:"executionTimeMs"`
	Status          UsageStatus `json:"status"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
	CreatedAt       Timestamp   `json:"createdAt,omitzero"`
}

// Provider names accepted by /ai/provider/switch.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)
