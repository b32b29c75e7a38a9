package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/yukikurage/taskwise/internal/calendar"
	"github.com/yukikurage/taskwise/internal/notify"
	"github.com/yukikurage/taskwise/internal/repository"
)

type calendarCall struct {
	Op      string
	Subject string
	EventID string
	Input   calendar.EventInput
}

type fakeCalendar struct {
	mu        sync.Mutex
	access    map[string]bool
	createErr error
	updateErr error
	deleteErr error
	calls     []calendarCall
	nextID    int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{access: map[string]bool{}}
}

func (f *fakeCalendar) HasAccess(ctx context.Context, subject string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, calendarCall{Op: "access", Subject: subject})
	return f.access[subject], nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, subject string, in calendar.EventInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, calendarCall{Op: "create", Subject: subject, Input: in})
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	return fmt.Sprintf("event-%d", f.nextID), nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, subject, eventID string, in calendar.EventInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, calendarCall{Op: "update", Subject: subject, EventID: eventID, Input: in})
	return f.updateErr
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, subject, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, calendarCall{Op: "delete", Subject: subject, EventID: eventID})
	return f.deleteErr
}

// mutations returns the calls that would write to the provider
func (f *fakeCalendar) mutations() []calendarCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []calendarCall
	for _, c := range f.calls {
		if c.Op != "access" {
			out = append(out, c)
		}
	}
	return out
}

type verificationEmail struct {
	To, Name, Code string
}

type fakeNotifier struct {
	mu            sync.Mutex
	err           error
	assignments   []notify.AssignmentEmail
	verifications []verificationEmail
}

func (f *fakeNotifier) SendAssignmentEmail(ctx context.Context, email notify.AssignmentEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments = append(f.assignments, email)
	return f.err
}

func (f *fakeNotifier) SendVerificationEmail(ctx context.Context, to, name, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications = append(f.verifications, verificationEmail{To: to, Name: name, Code: code})
	return f.err
}

type published struct {
	UserID  string
	Event   string
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(userID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{UserID: userID, Event: event, Payload: payload})
}

func (f *fakePublisher) recipients(event string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, e := range f.events {
		if e.Event == event {
			ids = append(ids, e.UserID)
		}
	}
	return ids
}

// interleavingTaskRepo runs beforeUpdate between the service's read and its
// write, standing in for a concurrent request.
type interleavingTaskRepo struct {
	repository.TaskRepository
	beforeUpdate func()
}

func (r *interleavingTaskRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	return r.TaskRepository.Update(ctx, id, fields)
}
