package constants

// Error codes used in API responses.
// These are the machine-readable codes returned in the "error" field.
const (
	// Common error codes
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeRateLimited    = "RATE_LIMITED"

	// Link-specific codes
	CodeInvalidURL     = "INVALID_URL"
	CodeRemarkRequired = "REMARK_REQUIRED"
	CodeLinkNotFound   = "LINK_NOT_FOUND"
	CodeLinkExpired    = "LINK_EXPIRED"

	// Success codes
	CodeLinkCreated = "LINK_CREATED"
	CodeLinkUpdated = "LINK_UPDATED"
	CodeLinkDeleted = "LINK_DELETED"
	CodeLinksFound  = "LINKS_FOUND"
	CodeClicksFound = "CLICKS_FOUND"
	CodeVisitsFound = "VISITS_FOUND"
)
