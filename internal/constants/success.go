package constants

import "net/http"

// APISuccess represents a standardized API success response with code and HTTP status.
type APISuccess struct {
	Code   string
	Status int
}

// Link-related success responses
var (
	SuccessLinkCreated = APISuccess{
		Code:   CodeLinkCreated,
		Status: http.StatusCreated,
	}
	SuccessLinkUpdated = APISuccess{
		Code:   CodeLinkUpdated,
		Status: http.StatusOK,
	}
	SuccessLinkDeleted = APISuccess{
		Code:   CodeLinkDeleted,
		Status: http.StatusOK,
	}
	SuccessLinksFound = APISuccess{
		Code:   CodeLinksFound,
		Status: http.StatusOK,
	}
)

// Analytics-related success responses
var (
	SuccessClicksFound = APISuccess{
		Code:   CodeClicksFound,
		Status: http.StatusOK,
	}
	SuccessVisitsFound = APISuccess{
		Code:   CodeVisitsFound,
		Status: http.StatusOK,
	}
)
