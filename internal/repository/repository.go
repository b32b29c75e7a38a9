package repository

import (
	"context"
	"time"

	"github.com/yukikurage/taskwise/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID
	FindByID(ctx context.Context, id string) (*models.Task, error)

	// ListVisible lists tasks owned by or assigned to the user, newest first
	ListVisible(ctx context.Context, userID string) ([]models.Task, error)

	// Update writes only the given columns of one task
	Update(ctx context.Context, id string, fields map[string]any) error

	// SetCalendarEventID stores or clears the linked calendar event
	SetCalendarEventID(ctx context.Context, id string, eventID *string) error

	// ClearCalendarEvents detaches every calendar event from the owner's tasks
	ClearCalendarEvents(ctx context.Context, ownerID string) (int64, error)

	// Delete permanently removes a task
	Delete(ctx context.Context, id string) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByEmail finds a user by email, case-insensitively
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// ListExcept lists every user but the given one, ordered by email
	ListExcept(ctx context.Context, id string) ([]models.User, error)
}

// CredentialRepository defines the interface for OAuth credential storage
type CredentialRepository interface {
	// Find returns the credential for the integration and subject
	Find(ctx context.Context, integration, subject string) (*models.Credential, error)

	// Upsert inserts the credential or overwrites the existing one for the same pair
	Upsert(ctx context.Context, cred *models.Credential) error

	// Delete removes the credential; deleting a missing one is not an error
	Delete(ctx context.Context, integration, subject string) error
}

// VerificationRepository defines the interface for pending registrations
type VerificationRepository interface {
	// Create stores a new pending registration
	Create(ctx context.Context, code *models.VerificationCode) error

	// FindActive returns an unused, unexpired code for the email
	FindActive(ctx context.Context, email string, now time.Time) (*models.VerificationCode, error)

	// FindLatest returns the most recent code matching email and code
	FindLatest(ctx context.Context, email, code string) (*models.VerificationCode, error)

	// Delete removes a pending registration
	Delete(ctx context.Context, id uint64) error

	// Consume marks the code as used and creates the user atomically
	Consume(ctx context.Context, code *models.VerificationCode, user *models.User) error
}
