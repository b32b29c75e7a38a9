package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// Task rows are hard-deleted; there is no DeletedAt column.
type Task struct {
	ID              string       `gorm:"type:varchar(36);primarykey" json:"id"`
	OwnerID         string       `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	AssigneeID      *string      `gorm:"type:varchar(36);index" json:"assignee_id"`
	Title           string       `gorm:"type:varchar(255);not null" json:"title"`
	Description     *string      `gorm:"type:text" json:"description"`
	Status          TaskStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Priority        TaskPriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	DueDate         *Date        `gorm:"type:date" json:"due_date"`
	Time            *TimeOfDay   `gorm:"column:time;type:varchar(5)" json:"time"`
	CalendarEventID *string      `gorm:"type:varchar(255)" json:"calendar_event_id"`
	CompletedAt     *time.Time   `json:"completed_at"`
	CreatedAt       time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	// Relations
	Owner    *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Assignee *User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// VisibleTo reports whether the user owns or is assigned the task
func (t *Task) VisibleTo(userID string) bool {
	if t.OwnerID == userID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// Audience returns the distinct users that should hear about changes to the task
func (t *Task) Audience() []string {
	ids := []string{t.OwnerID}
	if t.AssigneeID != nil && *t.AssigneeID != t.OwnerID {
		ids = append(ids, *t.AssigneeID)
	}
	return ids
}
