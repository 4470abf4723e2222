package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilchouksey/coursemart-api/model"
)

// MemoryStore is an in-process Store used by tests and local tooling.
// Transactions are serialized by a single mutex and rolled back from a snapshot.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
}

type memState struct {
	nextID      uint
	users       map[uint]model.User
	challenges  map[uint]model.OTPChallenge
	courses     map[uint]model.Course
	enrollments map[uint]model.Enrollment
	payments    map[uint]model.Payment
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		state: &memState{
			users:       map[uint]model.User{},
			challenges:  map[uint]model.OTPChallenge{},
			courses:     map[uint]model.Course{},
			enrollments: map[uint]model.Enrollment{},
			payments:    map[uint]model.Payment{},
		},
	}
}

func (s *memState) clone() *memState {
	out := &memState{
		nextID:      s.nextID,
		users:       make(map[uint]model.User, len(s.users)),
		challenges:  make(map[uint]model.OTPChallenge, len(s.challenges)),
		courses:     make(map[uint]model.Course, len(s.courses)),
		enrollments: make(map[uint]model.Enrollment, len(s.enrollments)),
		payments:    make(map[uint]model.Payment, len(s.payments)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.challenges {
		out.challenges[k] = v
	}
	for k, v := range s.courses {
		out.courses[k] = v
	}
	for k, v := range s.enrollments {
		out.enrollments[k] = v
	}
	for k, v := range s.payments {
		out.payments[k] = v
	}
	return out
}

func (s *memState) id() uint {
	s.nextID++
	return s.nextID
}

// lock acquires the store mutex unless the caller already holds it through WithinTx
func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Users() UserRepository             { return &memUsers{s} }
func (s *MemoryStore) Challenges() ChallengeRepository   { return &memChallenges{s} }
func (s *MemoryStore) Courses() CourseRepository         { return &memCourses{s} }
func (s *MemoryStore) Enrollments() EnrollmentRepository { return &memEnrollments{s} }
func (s *MemoryStore) Payments() PaymentRepository       { return &memPayments{s} }

func (s *MemoryStore) WithinTx(_ context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&MemoryStore{mu: s.mu, state: s.state, inTx: true}); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

type memUsers struct{ s *MemoryStore }

func (r *memUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	defer r.s.lock()()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	defer r.s.lock()()
	email = model.NormalizeEmail(email)
	for _, u := range r.s.state.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memUsers) GetByEmailForUpdate(ctx context.Context, email string) (*model.User, error) {
	return r.GetByEmail(ctx, email)
}

func (r *memUsers) Create(_ context.Context, user *model.User) error {
	defer r.s.lock()()
	user.Email = model.NormalizeEmail(user.Email)
	for _, u := range r.s.state.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	user.ID = r.s.state.id()
	stamp(&user.CreatedAt, &user.UpdatedAt)
	r.s.state.users[user.ID] = *user
	return nil
}

func (r *memUsers) Save(_ context.Context, user *model.User) error {
	defer r.s.lock()()
	user.UpdatedAt = time.Now()
	r.s.state.users[user.ID] = *user
	return nil
}

type memChallenges struct{ s *MemoryStore }

func (r *memChallenges) GetByUserID(_ context.Context, userID uint) (*model.OTPChallenge, error) {
	defer r.s.lock()()
	for _, c := range r.s.state.challenges {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memChallenges) Replace(_ context.Context, challenge *model.OTPChallenge) error {
	defer r.s.lock()()
	for id, c := range r.s.state.challenges {
		if c.UserID == challenge.UserID {
			delete(r.s.state.challenges, id)
		}
	}
	challenge.ID = r.s.state.id()
	stamp(&challenge.CreatedAt, &challenge.UpdatedAt)
	r.s.state.challenges[challenge.ID] = *challenge
	return nil
}

func (r *memChallenges) IncrementAttempts(_ context.Context, id uint) (int, error) {
	defer r.s.lock()()
	c, ok := r.s.state.challenges[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.Attempts++
	r.s.state.challenges[id] = c
	return c.Attempts, nil
}

func (r *memChallenges) DeleteByUserID(_ context.Context, userID uint) error {
	defer r.s.lock()()
	for id, c := range r.s.state.challenges {
		if c.UserID == userID {
			delete(r.s.state.challenges, id)
		}
	}
	return nil
}

func (r *memChallenges) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, c := range r.s.state.challenges {
		if c.ExpiresAt.Before(before) {
			delete(r.s.state.challenges, id)
			n++
		}
	}
	return n, nil
}

type memCourses struct{ s *MemoryStore }

func (r *memCourses) GetByID(_ context.Context, id uint) (*model.Course, error) {
	defer r.s.lock()()
	c, ok := r.s.state.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *memCourses) GetByIDForUpdate(ctx context.Context, id uint) (*model.Course, error) {
	return r.GetByID(ctx, id)
}

func (r *memCourses) List(_ context.Context, filter CourseFilter) ([]model.Course, int64, error) {
	defer r.s.lock()()

	search := strings.ToLower(filter.Search)
	var matched []model.Course
	for _, c := range r.s.state.courses {
		if filter.PublishedOnly && !c.Published {
			continue
		}
		if filter.InstructorID != 0 && c.InstructorID != filter.InstructorID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return []model.Course{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memCourses) Create(_ context.Context, course *model.Course) error {
	defer r.s.lock()()
	course.ID = r.s.state.id()
	stamp(&course.CreatedAt, &course.UpdatedAt)
	r.s.state.courses[course.ID] = *course
	return nil
}

func (r *memCourses) Save(_ context.Context, course *model.Course) error {
	defer r.s.lock()()
	course.UpdatedAt = time.Now()
	r.s.state.courses[course.ID] = *course
	return nil
}

func (r *memCourses) Delete(_ context.Context, id uint) error {
	defer r.s.lock()()
	if _, ok := r.s.state.courses[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.state.courses, id)
	return nil
}

type memEnrollments struct{ s *MemoryStore }

func (r *memEnrollments) Get(_ context.Context, userID, courseID uint) (*model.Enrollment, error) {
	defer r.s.lock()()
	for _, e := range r.s.state.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memEnrollments) Create(_ context.Context, enrollment *model.Enrollment) error {
	defer r.s.lock()()
	for _, e := range r.s.state.enrollments {
		if e.UserID == enrollment.UserID && e.CourseID == enrollment.CourseID {
			return ErrDuplicate
		}
	}
	enrollment.ID = r.s.state.id()
	stamp(&enrollment.CreatedAt, &enrollment.UpdatedAt)
	r.s.state.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (r *memEnrollments) Save(_ context.Context, enrollment *model.Enrollment) error {
	defer r.s.lock()()
	enrollment.UpdatedAt = time.Now()
	r.s.state.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (r *memEnrollments) CountByCourse(_ context.Context, courseID uint) (int64, error) {
	defer r.s.lock()()
	var n int64
	for _, e := range r.s.state.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (r *memEnrollments) ListByUser(_ context.Context, userID uint) ([]model.Enrollment, error) {
	defer r.s.lock()()
	out := []model.Enrollment{}
	for _, e := range r.s.state.enrollments {
		if e.UserID == userID {
			if c, ok := r.s.state.courses[e.CourseID]; ok {
				e.Course = &c
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memEnrollments) ListByCourse(_ context.Context, courseID uint) ([]model.Enrollment, error) {
	defer r.s.lock()()
	out := []model.Enrollment{}
	for _, e := range r.s.state.enrollments {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memPayments struct{ s *MemoryStore }

func (r *memPayments) Create(_ context.Context, payment *model.Payment) error {
	defer r.s.lock()()
	for _, p := range r.s.state.payments {
		if p.ProviderOrderID == payment.ProviderOrderID {
			return ErrDuplicate
		}
	}
	payment.ID = r.s.state.id()
	stamp(&payment.CreatedAt, &payment.UpdatedAt)
	r.s.state.payments[payment.ID] = *payment
	return nil
}

func (r *memPayments) GetByProviderOrderID(_ context.Context, orderID string) (*model.Payment, error) {
	defer r.s.lock()()
	for _, p := range r.s.state.payments {
		if p.ProviderOrderID == orderID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memPayments) GetByProviderOrderIDForUpdate(ctx context.Context, orderID string) (*model.Payment, error) {
	return r.GetByProviderOrderID(ctx, orderID)
}

func (r *memPayments) GetPending(_ context.Context, userID, courseID uint) (*model.Payment, error) {
	defer r.s.lock()()
	var found *model.Payment
	for _, p := range r.s.state.payments {
		if p.UserID != userID || p.CourseID != courseID || p.Status != model.PaymentStatusPending {
			continue
		}
		if found == nil || p.ID > found.ID {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *memPayments) Save(_ context.Context, payment *model.Payment) error {
	defer r.s.lock()()
	payment.UpdatedAt = time.Now()
	r.s.state.payments[payment.ID] = *payment
	return nil
}

func (r *memPayments) ListByUser(_ context.Context, userID uint) ([]model.Payment, error) {
	defer r.s.lock()()
	out := []model.Payment{}
	for _, p := range r.s.state.payments {
		if p.UserID == userID {
			if c, ok := r.s.state.courses[p.CourseID]; ok {
				p.Course = &c
			}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memPayments) ListByCourse(_ context.Context, courseID uint) ([]model.Payment, error) {
	defer r.s.lock()()
	out := []model.Payment{}
	for _, p := range r.s.state.payments {
		if p.CourseID == courseID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memPayments) FailStalePending(_ context.Context, before time.Time, reason string) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, p := range r.s.state.payments {
		if p.Status == model.PaymentStatusPending && p.UpdatedAt.Before(before) {
			p.Status = model.PaymentStatusFailed
			p.FailureReason = reason
			r.s.state.payments[id] = p
			n++
		}
	}
	return n, nil
}
