package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskwise/internal/calendar"
	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/models"
	"github.com/yukikurage/taskwise/internal/notify"
	"github.com/yukikurage/taskwise/internal/realtime"
	"github.com/yukikurage/taskwise/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrNotTaskOwner     = errors.New("only the task owner can perform this action")
	ErrAssigneeNotFound = errors.New("assignee does not exist")
)

// ValidationError reports a rejected field of a request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// CalendarSyncer mirrors tasks into the owner's calendar
type CalendarSyncer interface {
	HasAccess(ctx context.Context, subject string) (bool, error)
	CreateEvent(ctx context.Context, subject string, in calendar.EventInput) (string, error)
	UpdateEvent(ctx context.Context, subject, eventID string, in calendar.EventInput) error
	DeleteEvent(ctx context.Context, subject, eventID string) error
}

// AssignmentNotifier tells a user about a task assigned to them
type AssignmentNotifier interface {
	SendAssignmentEmail(ctx context.Context, email notify.AssignmentEmail) error
}

// TaskService handles task business logic. Calendar, email and realtime
// side effects are best effort: their failures are logged and never change
// the outcome of the task operation.
type TaskService struct {
	taskRepo  repository.TaskRepository
	userRepo  repository.UserRepository
	calendar  CalendarSyncer
	notifier  AssignmentNotifier
	publisher realtime.Publisher
	log       logrus.FieldLogger
	appURL    string
	now       func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo repository.TaskRepository,
	userRepo repository.UserRepository,
	calendar CalendarSyncer,
	notifier AssignmentNotifier,
	publisher realtime.Publisher,
	log logrus.FieldLogger,
	appURL string,
) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		calendar:  calendar,
		notifier:  notifier,
		publisher: publisher,
		log:       log.WithField("component", "task-service"),
		appURL:    strings.TrimRight(appURL, "/"),
		now:       time.Now,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description *string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *models.Date
	Time        *models.TimeOfDay
	AssigneeID  *string
}

// UpdateTaskInput is a partial update. Nil pointers and unset Optionals
// leave the field unchanged; a null Optional clears it.
type UpdateTaskInput struct {
	Title       *string
	Description Optional[string]
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	DueDate     Optional[models.Date]
	Time        Optional[models.TimeOfDay]
	AssigneeID  Optional[string]
}

// Empty reports whether the patch changes nothing
func (in UpdateTaskInput) Empty() bool {
	return in.Title == nil && !in.Description.Set && in.Status == nil && in.Priority == nil &&
		!in.DueDate.Set && !in.Time.Set && !in.AssigneeID.Set
}

// ListTasks returns the tasks owned by or assigned to the user, newest first
func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	tasks, err := s.taskRepo.ListVisible(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns a task the user can see
func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	return s.findVisible(ctx, userID, taskID)
}

// CreateTask validates and stores a new task owned by ownerID
func (s *TaskService) CreateTask(ctx context.Context, ownerID string, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "Title is required")
	}

	if input.Status == "" {
		input.Status = models.TaskStatusPending
	}
	if !input.Status.Valid() {
		return nil, invalid("status", "Invalid status")
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, invalid("priority", "Invalid priority")
	}

	assignee, err := s.resolveAssignee(ctx, input.AssigneeID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: normalizeText(input.Description),
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		Time:        input.Time,
	}
	if assignee != nil {
		task.AssigneeID = &assignee.ID
	}
	if task.Status == models.TaskStatusCompleted {
		now := s.now()
		task.CompletedAt = &now
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if task.DueDate != nil {
		s.createEvent(ctx, task)
	}
	if assignee != nil && assignee.ID != ownerID {
		s.notifyAssignee(ctx, task, assignee)
	}

	s.publish(constants.EventTaskCreated, task, task.Audience()...)
	return task, nil
}

// UpdateTask applies a partial update. Only the owner may modify a task.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*models.Task, error) {
	if input.Empty() {
		return nil, invalid("", "No fields to update")
	}

	task, err := s.findVisible(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != userID {
		return nil, ErrNotTaskOwner
	}

	previousAssignee := task.AssigneeID
	wasCompleted := task.Status == models.TaskStatusCompleted

	// Only the columns present in the patch are written so concurrent
	// patches of different fields both survive.
	fields := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, invalid("title", "Title cannot be empty")
		}
		fields["title"] = title
	}
	if input.Description.Set {
		fields["description"] = normalizeText(input.Description.Value)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, invalid("status", "Invalid status")
		}
		fields["status"] = *input.Status
		switch {
		case *input.Status == models.TaskStatusCompleted && !wasCompleted:
			fields["completed_at"] = s.now()
		case *input.Status != models.TaskStatusCompleted:
			fields["completed_at"] = nil
		}
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, invalid("priority", "Invalid priority")
		}
		fields["priority"] = *input.Priority
	}
	if input.DueDate.Set {
		fields["due_date"] = input.DueDate.Value
	}
	if input.Time.Set {
		fields["time"] = input.Time.Value
	}

	var newAssignee *models.User
	if input.AssigneeID.Set {
		newAssignee, err = s.resolveAssignee(ctx, input.AssigneeID.Value)
		if err != nil {
			return nil, err
		}
		var assigneeID *string
		if newAssignee != nil {
			assigneeID = &newAssignee.ID
		}
		fields["assignee_id"] = assigneeID
	}

	if err := s.taskRepo.Update(ctx, task.ID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	task, err = s.taskRepo.FindByID(ctx, task.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	s.syncEvent(ctx, task)

	if newAssignee != nil && newAssignee.ID != task.OwnerID && !sameID(previousAssignee, &newAssignee.ID) {
		s.notifyAssignee(ctx, task, newAssignee)
	}

	recipients := task.Audience()
	if previousAssignee != nil && !sameID(previousAssignee, task.AssigneeID) && *previousAssignee != task.OwnerID {
		recipients = append(recipients, *previousAssignee)
	}
	s.publish(constants.EventTaskUpdated, task, recipients...)

	return task, nil
}

// DeleteTask removes a task and its calendar event. Only the owner may delete.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) (string, error) {
	task, err := s.findVisible(ctx, userID, taskID)
	if err != nil {
		return "", err
	}
	if task.OwnerID != userID {
		return "", ErrNotTaskOwner
	}

	if task.CalendarEventID != nil {
		if err := s.calendar.DeleteEvent(ctx, task.OwnerID, *task.CalendarEventID); err != nil {
			s.integrationFailed(err, task, "Failed to delete calendar event")
		}
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrTaskNotFound
		}
		return "", fmt.Errorf("failed to delete task: %w", err)
	}

	s.publish(constants.EventTaskDeleted, map[string]string{"id": task.ID}, task.Audience()...)
	return task.ID, nil
}

func (s *TaskService) findVisible(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if !task.VisibleTo(userID) {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) resolveAssignee(ctx context.Context, id *string) (*models.User, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	user, err := s.userRepo.FindByID(ctx, strings.TrimSpace(*id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("failed to find assignee: %w", err)
	}
	return user, nil
}

// syncEvent brings the calendar in line with the task after an update
func (s *TaskService) syncEvent(ctx context.Context, task *models.Task) {
	switch {
	case task.DueDate != nil && task.CalendarEventID != nil:
		if err := s.calendar.UpdateEvent(ctx, task.OwnerID, *task.CalendarEventID, eventInput(task)); err != nil {
			s.integrationFailed(err, task, "Failed to update calendar event")
		}
	case task.DueDate != nil:
		s.createEvent(ctx, task)
	case task.CalendarEventID != nil:
		if err := s.calendar.DeleteEvent(ctx, task.OwnerID, *task.CalendarEventID); err != nil {
			s.integrationFailed(err, task, "Failed to delete calendar event")
		}
		if err := s.taskRepo.SetCalendarEventID(ctx, task.ID, nil); err != nil {
			s.log.WithError(err).WithField("task_id", task.ID).Error("Failed to clear calendar event id")
			return
		}
		task.CalendarEventID = nil
	}
}

func (s *TaskService) createEvent(ctx context.Context, task *models.Task) {
	ok, err := s.calendar.HasAccess(ctx, task.OwnerID)
	if err != nil {
		s.integrationFailed(err, task, "Failed to check calendar access")
		return
	}
	if !ok {
		return
	}

	eventID, err := s.calendar.CreateEvent(ctx, task.OwnerID, eventInput(task))
	if err != nil {
		s.integrationFailed(err, task, "Failed to create calendar event")
		return
	}
	if err := s.taskRepo.SetCalendarEventID(ctx, task.ID, &eventID); err != nil {
		s.log.WithError(err).WithField("task_id", task.ID).Error("Failed to store calendar event id")
		return
	}
	task.CalendarEventID = &eventID
}

func (s *TaskService) notifyAssignee(ctx context.Context, task *models.Task, assignee *models.User) {
	assignedBy := "A TaskWise user"
	if owner, err := s.userRepo.FindByID(ctx, task.OwnerID); err == nil {
		assignedBy = owner.Name
	} else {
		s.log.WithError(err).WithField("task_id", task.ID).Warn("Failed to load task owner for assignment email")
	}

	err := s.notifier.SendAssignmentEmail(ctx, notify.AssignmentEmail{
		To:              assignee.Email,
		TaskTitle:       task.Title,
		TaskDescription: task.Description,
		DueDate:         task.DueDate,
		AssignedByName:  assignedBy,
		TaskURL:         fmt.Sprintf("%s/?task=%s", s.appURL, task.ID),
	})
	if err != nil {
		s.integrationFailed(err, task, "Failed to send assignment email")
	}
}

func (s *TaskService) publish(event string, payload any, userIDs ...string) {
	for _, id := range userIDs {
		s.publisher.Publish(id, event, payload)
	}
}

func (s *TaskService) integrationFailed(err error, task *models.Task, msg string) {
	s.log.WithError(err).WithFields(logrus.Fields{
		"task_id":  task.ID,
		"owner_id": task.OwnerID,
	}).Warn(msg)
}

func eventInput(task *models.Task) calendar.EventInput {
	in := calendar.EventInput{
		Title: task.Title,
		Time:  task.Time,
	}
	if task.Description != nil {
		in.Description = *task.Description
	}
	if task.DueDate != nil {
		in.Date = *task.DueDate
	}
	return in
}

func normalizeText(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
