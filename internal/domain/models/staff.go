package models

import "time"

// StaffRouteAssignment authorizes a staff member to scan/mark on a route.
type StaffRouteAssignment struct {
	ID         int64     `json:"id"`
	StaffEmail string    `json:"staff_email"`
	RouteID    int64     `json:"route_id"`
	RouteCode  string    `json:"route_code,omitempty"`
	RouteName  string    `json:"route_name,omitempty"`
	Active     bool      `json:"active"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User is a staff/admin/driver account.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Status       string `json:"status"`
}
