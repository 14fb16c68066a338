package domain

// ID is used across domain entities.
type ID = int64

// Roles carried in tokens and role-context fields.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleDriver = "driver"
)

// Marker identifies who is scanning or marking; at least one of StaffID/Email is required.
type Marker struct {
	StaffID int64  `json:"staffId,omitempty"`
	Email   string `json:"staffEmail,omitempty"`
	Role    string `json:"role,omitempty"`
}

// IsAdmin reports whether the marker acts with admin privileges (bypasses route assignment).
func (m Marker) IsAdmin() bool { return m.Role == RoleAdmin }

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	UserID ID     `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}
