package constants

// Error messages used in API responses.
// These are the human-readable messages returned in the "message" field.
const (
	// Common messages
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"
	MsgUnauthorized       = "Unauthorized"
	MsgForbidden          = "You do not own this link"
	MsgRateLimited        = "Too many requests"

	// Link-specific messages
	MsgInvalidURL     = "Invalid destination URL"
	MsgRemarkRequired = "Remarks are required"
	MsgLinkNotFound   = "Shortened URL not found"
	MsgLinkExpired    = "This link has expired"
)
