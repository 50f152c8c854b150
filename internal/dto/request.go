package dto

// CreateRequestPayload is the creation body for a substitute request. The
// requester comes from the authenticated context, never from the payload.
type CreateRequestPayload struct {
	Subject         string  `json:"subject" validate:"required"`
	Date            string  `json:"date" validate:"required"`
	Time            string  `json:"time" validate:"required"`
	DurationMinutes int     `json:"durationMinutes" validate:"required,gt=0"`
	Classroom       string  `json:"classroom" validate:"required"`
	Notes           *string `json:"notes,omitempty"`
}
