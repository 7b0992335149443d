package projects

import "pmtrack/internal/models"

// CanChangeStatus reports whether role may move a project from current to next.
func CanChangeStatus(role models.UserRole, current, next models.ProjectStatus) bool {
	if current == next {
		return false
	}

	switch role {

	case models.RoleAdmin:
		return true

	case models.RoleManager:
		switch current {
		case models.StatusPlanning:
			return next == models.StatusInProgress || next == models.StatusCancelled
		case models.StatusInProgress:
			return next == models.StatusOnHold || next == models.StatusCompleted
		case models.StatusOnHold:
			return next == models.StatusInProgress || next == models.StatusCancelled
		}
		return false

	default:
		return false
	}
}
