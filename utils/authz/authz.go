// Package authz holds the role and ownership checks shared by middleware and services.
package authz

import (
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/utils/apperror"
)

// HasRole reports whether the actor holds one of the given roles
func HasRole(actor *model.User, roles ...model.Role) bool {
	if actor == nil {
		return false
	}
	for _, r := range roles {
		if actor.Role == r {
			return true
		}
	}
	return false
}

// CanManageCourse is true for admins and the course's own instructor
func CanManageCourse(actor *model.User, course *model.Course) bool {
	if actor == nil || course == nil {
		return false
	}
	if actor.Role == model.RoleAdmin {
		return true
	}
	return actor.Role == model.RoleInstructor && course.InstructorID == actor.ID
}

// RequireCourseManager returns a Forbidden error unless CanManageCourse holds
func RequireCourseManager(actor *model.User, course *model.Course) error {
	if !CanManageCourse(actor, course) {
		return apperror.Forbidden("You do not have permission to manage this course")
	}
	return nil
}

// CanAuthorCourses is true for roles allowed to create courses
func CanAuthorCourses(actor *model.User) bool {
	return HasRole(actor, model.RoleInstructor, model.RoleAdmin)
}
