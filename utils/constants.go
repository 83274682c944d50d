package utils

// Application constants
const (
	AppName = "DonateKart"

	APIVersion = "v1"

	DefaultPort = "8080"

	DefaultDBHost = "localhost"

	DefaultDBPort = "5432"

	DefaultDBName = "donatekart"

	DefaultDBUser = "postgres"

	// Razorpay settles INR in paise
	DefaultCurrency = "INR"

	DefaultPlatformFee = "50.00"

	// Bounded wait for the gateway callback before an attempt is abandoned
	DefaultAuthorizationTimeout = "15m"

	DefaultPaginationLimit = 10

	MaxPaginationLimit = 100
)

// Error messages
const (
	ErrUnauthorized = "Please login for access"
	ErrForbidden    = "Access forbidden"

	ErrInvalidPhone      = "Contact number must be exactly 10 digits"
	ErrInvalidPostalCode = "Postal code must be exactly 6 digits"

	ErrRecordNotFound = "Record not found"

	ErrInternalServer = "Internal server error"
)

// Context keys set by middleware
const (
	ContextUserKey      = "user"
	ContextRequestIDKey = "RequestID"
	ContextSessionIDKey = "CheckoutSessionID"
)
