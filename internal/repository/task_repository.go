package repository

import (
	"context"

	"github.com/yukikurage/taskwise/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

// FindByID finds a task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListVisible lists tasks owned by or assigned to the user, newest first
func (r *GormTaskRepository) ListVisible(ctx context.Context, userID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR assignee_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update writes only the given columns. A task that no longer exists is
// reported as gorm.ErrRecordNotFound and never re-created.
func (r *GormTaskRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetCalendarEventID stores or clears the linked calendar event
func (r *GormTaskRepository) SetCalendarEventID(ctx context.Context, id string, eventID *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", id).
		Update("calendar_event_id", eventID).Error
}

// ClearCalendarEvents detaches every calendar event from the owner's tasks
func (r *GormTaskRepository) ClearCalendarEvents(ctx context.Context, ownerID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("owner_id = ? AND calendar_event_id IS NOT NULL", ownerID).
		Update("calendar_event_id", nil)
	return result.RowsAffected, result.Error
}

// Delete permanently removes a task
func (r *GormTaskRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
