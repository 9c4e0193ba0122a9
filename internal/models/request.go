package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's position in the escalation hierarchy.
type Role string

const (
	RoleOperationsStaff Role = "operations_staff"
	RoleOperationsAdmin Role = "operations_admin"
	RoleManagement      Role = "management"
	RoleSuperAdmin      Role = "super_admin"
	RoleRequester       Role = "requester"
)

// EscalationRole maps an escalation level to the role-set notified at that
// tier.
func EscalationRole(level int) (Role, bool) {
	switch level {
	case 1:
		return RoleOperationsAdmin, true
	case 2:
		return RoleManagement, true
	case 3:
		return RoleSuperAdmin, true
	default:
		return "", false
	}
}

// User is a read-only view over the user directory: just enough to resolve
// recipients and contact addresses.
type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// FlightRequest is a read-only view over a pending request: the earliest
// departure instant plus the attributes alert messages are built from. The
// request itself is owned by an external system.
type FlightRequest struct {
	ID               uuid.UUID `json:"id"`
	RequestNumber    string    `json:"request_number"`
	Status           string    `json:"status"`
	VIPCodename      string    `json:"vip_codename"`
	DepartureTime    time.Time `json:"departure_time"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	Passengers       int       `json:"passengers"`
	RequesterID      int64     `json:"requester_id"`
}

// HoursUntilDeparture returns the time remaining before departure, in hours,
// as a real number.
func (r *FlightRequest) HoursUntilDeparture(now time.Time) float64 {
	return r.DepartureTime.Sub(now).Hours()
}
