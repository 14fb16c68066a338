package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"transitportal/internal/domain"
	"transitportal/internal/domain/models"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

// AuthorizationService answers "may this staff member act on this route".
type AuthorizationService struct {
	Assignments AssignmentStore
	Users       UserStore
	RequestID   string
}

func (s AuthorizationService) assignments() AssignmentStore {
	if s.Assignments != nil {
		return s.Assignments
	}
	return repositories.StaffRepository{}
}

func (s AuthorizationService) users() UserStore {
	if s.Users != nil {
		return s.Users
	}
	return repositories.UserRepository{}
}

// ResolveEmail returns the normalized email of the marker, looking staff ids up in users.
func (s AuthorizationService) ResolveEmail(ctx context.Context, m domain.Marker) (string, error) {
	if email := utils.NormalizeEmail(m.Email); email != "" {
		return email, nil
	}
	if m.StaffID <= 0 {
		return "", domain.ValidationError{
			Code:  domain.CodeStaffInfoRequired,
			Field: "staff",
			Msg:   "staff id or staff email is required",
		}
	}
	email, err := s.users().EmailByID(ctx, m.StaffID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", domain.NotFoundError{Resource: "staff", Err: err}
	}
	if err != nil {
		return "", domain.Persistence("resolve staff", err)
	}
	return utils.NormalizeEmail(email), nil
}

// IsAssigned reports whether the marker holds an active assignment for routeID.
func (s AuthorizationService) IsAssigned(ctx context.Context, m domain.Marker, routeID int64) (bool, error) {
	email, err := s.ResolveEmail(ctx, m)
	if err != nil {
		return false, err
	}
	return s.isEmailAssigned(ctx, email, routeID)
}

func (s AuthorizationService) isEmailAssigned(ctx context.Context, email string, routeID int64) (bool, error) {
	ok, err := s.assignments().IsAssigned(ctx, email, routeID)
	if err != nil {
		return false, domain.Persistence("check route assignment", err)
	}
	return ok, nil
}

// Authorize resolves the marker and fails with NOT_AUTHORIZED unless the marker is an admin
// or assigned to routeID. It returns the resolved email.
func (s AuthorizationService) Authorize(ctx context.Context, m domain.Marker, routeID int64) (string, error) {
	email, err := s.ResolveEmail(ctx, m)
	if err != nil {
		return "", err
	}
	if err := s.authorizeEmail(ctx, email, m.IsAdmin(), routeID); err != nil {
		return "", err
	}
	return email, nil
}

func (s AuthorizationService) authorizeEmail(ctx context.Context, email string, admin bool, routeID int64) error {
	if admin {
		return nil
	}
	ok, err := s.isEmailAssigned(ctx, email, routeID)
	if err != nil {
		return err
	}
	if !ok {
		utils.LogEvent(s.RequestID, "auth", "route_denied", fmt.Sprintf("staff=%s route_id=%d", email, routeID))
		return domain.AuthorizationError{Msg: "staff is not assigned to this route"}
	}
	return nil
}

// AssignedRoutes lists the marker's active routes.
func (s AuthorizationService) AssignedRoutes(ctx context.Context, m domain.Marker) ([]models.StaffRouteAssignment, error) {
	email, err := s.ResolveEmail(ctx, m)
	if err != nil {
		return nil, err
	}
	routes, err := s.assignments().ListRoutes(ctx, email)
	if err != nil {
		return nil, domain.Persistence("list staff routes", err)
	}
	return routes, nil
}

func validateAssignment(email string, routeID int64) (string, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", domain.ValidationError{Field: "staffEmail", Msg: "a valid staff email is required"}
	}
	if routeID <= 0 {
		return "", domain.ValidationError{Field: "routeId", Msg: "route id is required"}
	}
	return email, nil
}

// Assign creates or reactivates an assignment.
func (s AuthorizationService) Assign(ctx context.Context, email string, routeID int64) error {
	email, err := validateAssignment(email, routeID)
	if err != nil {
		return err
	}
	err = s.assignments().Assign(ctx, email, routeID)
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.NotFoundError{Resource: "route", Err: err}
	}
	if err != nil {
		return domain.Persistence("assign route", err)
	}
	utils.LogEvent(s.RequestID, "auth", "assign_route", fmt.Sprintf("staff=%s route_id=%d", email, routeID))
	return nil
}

// Unassign deactivates an assignment; NOT_FOUND when none was active.
func (s AuthorizationService) Unassign(ctx context.Context, email string, routeID int64) error {
	email, err := validateAssignment(email, routeID)
	if err != nil {
		return err
	}
	removed, err := s.assignments().Unassign(ctx, email, routeID)
	if err != nil {
		return domain.Persistence("unassign route", err)
	}
	if !removed {
		return domain.NotFoundError{Resource: "assignment"}
	}
	utils.LogEvent(s.RequestID, "auth", "unassign_route", fmt.Sprintf("staff=%s route_id=%d", email, routeID))
	return nil
}
