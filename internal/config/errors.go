package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "failed to initialize database: %w"

	// Auth errors
	ErrCreateProviderFmt      = "failed to create provider: %w"
	ErrAuthHeaderRequired     = "Authorization header required"
	ErrInvalidSignatureFormat = "Invalid signature format"
	ErrInvalidSignature       = "Invalid signature"
	ErrInternalServerError    = "Internal server error"
	ErrUnauthorized           = "Unauthorized"

	// Draft errors
	ErrDraftNotFound   = "Draft not found"
	ErrInvalidRequest  = "Invalid request"
	ErrUploadTooLarge  = "Upload too large"
	ErrUnsupportedType = "Unsupported file type"

	// Challenge errors
	ErrRefreshChallengeFmt = "Failed to refresh challenge"
)
