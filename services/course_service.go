package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/utils/apperror"
	"github.com/sahilchouksey/coursemart-api/utils/authz"
	"github.com/sahilchouksey/coursemart-api/utils/cache"
	"github.com/shopspring/decimal"
)

const (
	courseDetailKeyPrefix = "courses:detail:"
	courseListKeyPrefix   = "courses:list:"
)

// CourseService manages the course catalogue. Reads are memoized through the cache.
type CourseService struct {
	store    repository.Store
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewCourseService creates a new course service; a nil cache disables memoization
func NewCourseService(store repository.Store, c cache.Cache, cacheTTL time.Duration) *CourseService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &CourseService{
		store:    store,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// CourseInput carries the writable course fields; nil fields are left untouched on update
type CourseInput struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Capacity    *int
	Published   *bool
}

// CoursePage is a page of published courses
type CoursePage struct {
	Courses []model.Course `json:"courses"`
	Total   int64          `json:"total"`
}

func courseDetailKey(id uint) string {
	return fmt.Sprintf("%s%d", courseDetailKeyPrefix, id)
}

// ListCourses returns published courses matching search
func (s *CourseService) ListCourses(ctx context.Context, page, limit int, search string) (*CoursePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	search = strings.TrimSpace(search)
	key := fmt.Sprintf("%s%d:%d:%s", courseListKeyPrefix, page, limit, strings.ToLower(search))

	var cached CoursePage
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	courses, total, err := s.store.Courses().List(ctx, repository.CourseFilter{
		Search:        search,
		PublishedOnly: true,
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		return nil, apperror.Internal("Failed to list courses", err)
	}

	result := &CoursePage{Courses: courses, Total: total}
	if err := s.cache.SetJSON(ctx, key, result, s.cacheTTL); err != nil {
		log.Warnw("failed to cache course list", "key", key, "error", err)
	}
	return result, nil
}

// GetCourse returns a course. Unpublished courses are only visible to whoever may manage them.
func (s *CourseService) GetCourse(ctx context.Context, actor *model.User, id uint) (*model.Course, error) {
	course, err := s.loadCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !course.Published && !authz.CanManageCourse(actor, course) {
		return nil, apperror.NotFound("Course not found")
	}
	return course, nil
}

func (s *CourseService) loadCourse(ctx context.Context, id uint) (*model.Course, error) {
	key := courseDetailKey(id)

	var cached model.Course
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	course, err := s.store.Courses().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Course not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load course", err)
	}

	if err := s.cache.SetJSON(ctx, key, course, s.cacheTTL); err != nil {
		log.Warnw("failed to cache course", "course_id", id, "error", err)
	}
	return course, nil
}

func validateCourseInput(input CourseInput, creating bool) error {
	var problems []string
	if creating && (input.Title == nil || strings.TrimSpace(*input.Title) == "") {
		problems = append(problems, "title is required")
	}
	if !creating && input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		problems = append(problems, "title cannot be empty")
	}
	if input.Price != nil && input.Price.IsNegative() {
		problems = append(problems, "price must be greater than or equal to 0")
	}
	if input.Capacity != nil && *input.Capacity < 0 {
		problems = append(problems, "capacity must be greater than or equal to 0")
	}
	if len(problems) > 0 {
		return apperror.Validation("Validation failed", problems...)
	}
	return nil
}

func applyCourseInput(course *model.Course, input CourseInput) {
	if input.Title != nil {
		course.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		course.Description = *input.Description
	}
	if input.Price != nil {
		course.Price = input.Price.Round(2)
	}
	if input.Capacity != nil {
		course.Capacity = *input.Capacity
	}
	if input.Published != nil {
		course.Published = *input.Published
	}
}

// CreateCourse creates a course owned by the actor
func (s *CourseService) CreateCourse(ctx context.Context, actor *model.User, input CourseInput) (*model.Course, error) {
	if !authz.CanAuthorCourses(actor) {
		return nil, apperror.Forbidden("Only instructors and admins can create courses")
	}
	if err := validateCourseInput(input, true); err != nil {
		return nil, err
	}

	course := &model.Course{InstructorID: actor.ID}
	applyCourseInput(course, input)

	if err := s.store.Courses().Create(ctx, course); err != nil {
		return nil, apperror.Internal("Failed to create course", err)
	}

	s.invalidate(ctx, course.ID)
	log.Infow("course created", "course_id", course.ID, "instructor_id", actor.ID)
	return course, nil
}

// UpdateCourse applies a partial update for the owner or an admin
func (s *CourseService) UpdateCourse(ctx context.Context, actor *model.User, id uint, input CourseInput) (*model.Course, error) {
	if err := validateCourseInput(input, false); err != nil {
		return nil, err
	}

	var course *model.Course
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		course, err = tx.Courses().GetByIDForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Course not found")
		}
		if err != nil {
			return err
		}
		if err := authz.RequireCourseManager(actor, course); err != nil {
			return err
		}

		applyCourseInput(course, input)
		return tx.Courses().Save(ctx, course)
	})
	if err != nil {
		return nil, wrapInternal("Failed to update course", err)
	}

	s.invalidate(ctx, id)
	return course, nil
}

// DeleteCourse removes a course for the owner or an admin
func (s *CourseService) DeleteCourse(ctx context.Context, actor *model.User, id uint) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		course, err := tx.Courses().GetByIDForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Course not found")
		}
		if err != nil {
			return err
		}
		if err := authz.RequireCourseManager(actor, course); err != nil {
			return err
		}
		return tx.Courses().Delete(ctx, id)
	})
	if err != nil {
		return wrapInternal("Failed to delete course", err)
	}

	s.invalidate(ctx, id)
	log.Infow("course deleted", "course_id", id, "actor_id", actor.ID)
	return nil
}

// invalidate drops the cached detail of the course and every cached list page
func (s *CourseService) invalidate(ctx context.Context, id uint) {
	if err := s.cache.Delete(ctx, courseDetailKey(id)); err != nil {
		log.Warnw("failed to invalidate course cache", "course_id", id, "error", err)
	}
	if err := s.cache.DeletePrefix(ctx, courseListKeyPrefix); err != nil {
		log.Warnw("failed to invalidate course list cache", "error", err)
	}
}
