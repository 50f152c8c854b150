package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// RequestStatus captures the lifecycle state of a substitute request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusCancelled RequestStatus = "cancelled"
	StatusCompleted RequestStatus = "completed"
)

// transitions enumerates every legal lifecycle edge. Anything absent here is
// forbidden: cancelled and completed are terminal.
var transitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusAccepted, StatusCancelled},
	StatusAccepted: {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether next is a legal edge from s.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s RequestStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Date is a calendar day without a time component. It travels as
// "YYYY-MM-DD" in JSON and maps onto a Postgres DATE column.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses an ISO 8601 calendar date.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return Date{Time: t}, nil
}

// String renders the ISO form.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = v
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.Format(dateLayout), nil
}

// SubstituteRequest is the central entity: one faculty member asking a
// colleague to cover a class. Descriptive fields are immutable after
// creation; only status, accepted_by and updated_at ever change.
type SubstituteRequest struct {
	ID              string        `db:"id" json:"id"`
	RequesterID     string        `db:"requester_id" json:"requesterId"`
	Subject         string        `db:"subject" json:"subject"`
	Date            Date          `db:"date" json:"date"`
	Time            string        `db:"time" json:"time"`
	DurationMinutes int           `db:"duration_minutes" json:"durationMinutes"`
	Classroom       string        `db:"classroom" json:"classroom"`
	Notes           *string       `db:"notes" json:"notes,omitempty"`
	Status          RequestStatus `db:"status" json:"status"`
	AcceptedBy      *string       `db:"accepted_by" json:"acceptedBy,omitempty"`
	RequesterName   *string       `db:"requester_name" json:"requesterName,omitempty"`
	AcceptorName    *string       `db:"acceptor_name" json:"acceptorName,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}
