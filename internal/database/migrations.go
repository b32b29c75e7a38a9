package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type index struct {
	table   string
	name    string
	columns string
}

// Composite indexes that struct tags cannot express
var indexes = []index{
	{"tasks", "idx_tasks_owner_created", "owner_id, created_at"},
	{"tasks", "idx_tasks_assignee_created", "assignee_id, created_at"},
	{"email_verification_codes", "idx_verification_email_code", "email, code"},
}

// AddIndexes creates the composite indexes that do not exist yet
func AddIndexes(db *gorm.DB, log logrus.FieldLogger) error {
	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			log.WithField("index", idx.name).Debug("Index already exists, skipping")
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.WithFields(logrus.Fields{
			"index": idx.name,
			"table": idx.table,
		}).Info("Created index")
	}

	return nil
}
