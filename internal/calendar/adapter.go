// Package calendar mirrors due-dated tasks into the owner's Google Calendar.
package calendar

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/yukikurage/taskwise/internal/constants"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
	"github.com/yukikurage/taskwise/internal/googleauth"
	"github.com/yukikurage/taskwise/internal/models"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)


// EventInput is the part of a task that shapes its calendar event
type EventInput struct {
	Title       string
	Description string
	Date        models.Date
	Time        *models.TimeOfDay
}

// Account is the display identity of a connected calendar
type Account struct {
	Email   string `json:"email"`
	Summary string `json:"summary"`
}

// Adapter performs event CRUD on behalf of a subject. Every failure is
// returned as an *errors.IntegrationError.
type Adapter struct {
	tokens     *googleauth.TokenManager
	calendarID string
	loc        *time.Location
	breaker    *gobreaker.CircuitBreaker
	opts       []option.ClientOption
	log        logrus.FieldLogger
}

// NewAdapter creates an Adapter writing to calendarID with timed events in loc.
// Extra client options are appended to every API client (endpoint overrides).
func NewAdapter(tokens *googleauth.TokenManager, calendarID string, loc *time.Location, log logrus.FieldLogger, opts ...option.ClientOption) *Adapter {
	log = log.WithField("integration", constants.IntegrationGoogleCalendar)
	return &Adapter{
		tokens:     tokens,
		calendarID: calendarID,
		loc:        loc,
		opts:       opts,
		log:        log,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "google-calendar",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !isProviderFailure(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		}),
	}
}

// HasAccess reports whether subject has connected a calendar
func (a *Adapter) HasAccess(ctx context.Context, subject string) (bool, error) {
	ok, err := a.tokens.HasCredential(ctx, subject)
	if err != nil {
		return false, apierrors.NewIntegrationError(constants.IntegrationGoogleCalendar, "check access", err)
	}
	return ok, nil
}

// CreateEvent inserts the event and returns its id
func (a *Adapter) CreateEvent(ctx context.Context, subject string, in EventInput) (string, error) {
	const op = "create event"
	svc, err := a.service(ctx, subject, op)
	if err != nil {
		return "", err
	}

	var created *gcal.Event
	err = a.call(op, func() error {
		created, err = svc.Events.Insert(a.calendarID, BuildEvent(in, a.loc)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}

	a.log.WithFields(logrus.Fields{"subject": subject, "event_id": created.Id}).Info("Calendar event created")
	return created.Id, nil
}

// UpdateEvent replaces the event. A missing event is reported as an error,
// never recreated.
func (a *Adapter) UpdateEvent(ctx context.Context, subject, eventID string, in EventInput) error {
	const op = "update event"
	svc, err := a.service(ctx, subject, op)
	if err != nil {
		return err
	}

	return a.call(op, func() error {
		_, err := svc.Events.Update(a.calendarID, eventID, BuildEvent(in, a.loc)).Context(ctx).Do()
		return err
	})
}

// DeleteEvent removes the event
func (a *Adapter) DeleteEvent(ctx context.Context, subject, eventID string) error {
	const op = "delete event"
	svc, err := a.service(ctx, subject, op)
	if err != nil {
		return err
	}

	return a.call(op, func() error {
		return svc.Events.Delete(a.calendarID, eventID).Context(ctx).Do()
	})
}

// Account returns the connected calendar's identity, or nil when subject
// has not connected one.
func (a *Adapter) Account(ctx context.Context, subject string) (*Account, error) {
	const op = "get account"
	ok, err := a.HasAccess(ctx, subject)
	if err != nil || !ok {
		return nil, err
	}

	svc, err := a.service(ctx, subject, op)
	if err != nil {
		return nil, err
	}

	var entry *gcal.CalendarListEntry
	err = a.call(op, func() error {
		entry, err = svc.CalendarList.Get("primary").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Account{Email: entry.Id, Summary: entry.Summary}, nil
}

func (a *Adapter) service(ctx context.Context, subject, op string) (*gcal.Service, error) {
	client, err := a.tokens.Client(ctx, subject)
	if err != nil {
		return nil, apierrors.NewIntegrationError(constants.IntegrationGoogleCalendar, op, err)
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, a.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, apierrors.NewIntegrationError(constants.IntegrationGoogleCalendar, op, err)
	}
	return svc, nil
}

func (a *Adapter) call(op string, fn func() error) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		return apierrors.NewIntegrationError(constants.IntegrationGoogleCalendar, op, err)
	}
	return nil
}

// BuildEvent converts the task schedule into an event. Without a time the
// event is all-day on exactly the due date; with a time it starts at that
// wall-clock time in loc and lasts one hour.
func BuildEvent(in EventInput, loc *time.Location) *gcal.Event {
	ev := &gcal.Event{
		Summary:     in.Title,
		Description: in.Description,
	}

	if in.Time == nil {
		day := in.Date.String()
		ev.Start = &gcal.EventDateTime{Date: day}
		ev.End = &gcal.EventDateTime{Date: day}
		return ev
	}

	// The offset is part of the value so an end that crosses a DST change
	// stays one hour after the start.
	start := in.Time.On(in.Date, loc)
	end := start.Add(constants.CalendarEventDuration)
	ev.Start = &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()}
	ev.End = &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()}
	return ev
}

// isProviderFailure reports errors that say the provider itself is unhealthy.
// Client errors such as a revoked grant or a missing event do not count.
func isProviderFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= http.StatusInternalServerError
	}
	return true
}
