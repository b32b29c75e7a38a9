package dto

import (
	"strings"
	"time"

	"github.com/yukikurage/taskwise/internal/models"
	"github.com/yukikurage/taskwise/internal/services"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"owner_id"`
	AssigneeID      *string             `json:"assignee_id"`
	Title           string              `json:"title"`
	Description     *string             `json:"description"`
	Status          models.TaskStatus   `json:"status"`
	Priority        models.TaskPriority `json:"priority"`
	DueDate         *models.Date        `json:"due_date"`
	Time            *models.TimeOfDay   `json:"time"`
	CalendarEventID *string             `json:"calendar_event_id"`
	CompletedAt     *time.Time          `json:"completed_at"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CreateTaskRequest is the body of POST /api/tasks
type CreateTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	Time        *string `json:"time"`
	AssigneeID  *string `json:"assignee_id"`
}

// UpdateTaskRequest is the body of PUT /api/tasks/:id. Absent keys are left
// unchanged; null or "" clears the optional fields.
type UpdateTaskRequest struct {
	Title       *string                   `json:"title"`
	Description services.Optional[string] `json:"description"`
	Status      *string                   `json:"status"`
	Priority    *string                   `json:"priority"`
	DueDate     services.Optional[string] `json:"due_date"`
	Time        services.Optional[string] `json:"time"`
	AssigneeID  services.Optional[string] `json:"assignee_id"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
}

// ToUserDTOs converts a slice of users
func ToUserDTOs(users []models.User) []UserDTO {
	items := make([]UserDTO, len(users))
	for i, user := range users {
		items[i] = ToUserDTO(user)
	}
	return items
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:              task.ID,
		OwnerID:         task.OwnerID,
		AssigneeID:      task.AssigneeID,
		Title:           task.Title,
		Description:     task.Description,
		Status:          task.Status,
		Priority:        task.Priority,
		DueDate:         task.DueDate,
		Time:            task.Time,
		CalendarEventID: task.CalendarEventID,
		CompletedAt:     task.CompletedAt,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
	}
}

// ToTaskDTOs converts a slice of tasks, never returning nil
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return items
}

// ToInput parses the request into service input
func (r CreateTaskRequest) ToInput() (services.CreateTaskInput, error) {
	input := services.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      models.TaskStatus(r.Status),
		Priority:    models.TaskPriority(r.Priority),
		AssigneeID:  r.AssigneeID,
	}

	var err error
	if input.DueDate, err = parseDate(r.DueDate); err != nil {
		return input, err
	}
	if input.Time, err = parseTime(r.Time); err != nil {
		return input, err
	}
	return input, nil
}

// ToInput parses the request into a service patch
func (r UpdateTaskRequest) ToInput() (services.UpdateTaskInput, error) {
	input := services.UpdateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		AssigneeID:  blankAsNull(r.AssigneeID),
	}
	if r.Status != nil {
		status := models.TaskStatus(*r.Status)
		input.Status = &status
	}
	if r.Priority != nil {
		priority := models.TaskPriority(*r.Priority)
		input.Priority = &priority
	}

	if r.DueDate.Set {
		d, err := parseDate(r.DueDate.Value)
		if err != nil {
			return input, err
		}
		input.DueDate = services.Optional[models.Date]{Set: true, Value: d}
	}
	if r.Time.Set {
		t, err := parseTime(r.Time.Value)
		if err != nil {
			return input, err
		}
		input.Time = services.Optional[models.TimeOfDay]{Set: true, Value: t}
	}
	return input, nil
}

func parseDate(s *string) (*models.Date, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	d, err := models.ParseDate(*s)
	if err != nil {
		return nil, &services.ValidationError{Field: "due_date", Message: "Invalid due_date, expected YYYY-MM-DD"}
	}
	return &d, nil
}

func parseTime(s *string) (*models.TimeOfDay, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := models.ParseTimeOfDay(*s)
	if err != nil {
		return nil, &services.ValidationError{Field: "time", Message: "Invalid time, expected HH:MM"}
	}
	return &t, nil
}

func blankAsNull(o services.Optional[string]) services.Optional[string] {
	if o.Value != nil && strings.TrimSpace(*o.Value) == "" {
		return services.Null[string]()
	}
	return o
}
