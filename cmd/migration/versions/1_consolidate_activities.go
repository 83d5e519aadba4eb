package versions

import (
	"log"
	"papertrail/docstore/schema"

	"gorm.io/gorm"
)

// Earlier deployments wrote status changes to an activities table and tag
// changes to a separate activity_logs table. This merges the tag rows into
// activities, rewriting the legacy action names, and drops the old table.
func Migration_1_consolidate_activities(txn *gorm.DB) error {
	if !txn.Migrator().HasTable("activity_logs") {
		log.Println("no legacy activity_logs table found, skipping consolidation")
		return nil
	}

	if err := txn.AutoMigrate(&schema.Activity{}); err != nil {
		return err
	}

	copyRows := `
		INSERT INTO activities (id, document_id, user_id, action, notes, created_at)
		SELECT id, document_id, user_id,
			CASE action
				WHEN 'tagged' THEN 'tag_added'
				WHEN 'untagged' THEN 'tag_removed'
				ELSE action
			END,
			notes, created_at
		FROM activity_logs
	`
	if err := txn.Exec(copyRows).Error; err != nil {
		return err
	}

	var copied int64
	if err := txn.Table("activity_logs").Count(&copied).Error; err != nil {
		return err
	}
	log.Printf("consolidated %d rows from activity_logs into activities", copied)

	return txn.Migrator().DropTable("activity_logs")
}
