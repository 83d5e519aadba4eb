package audit

import (
	"testing"

	"papertrail/docstore/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(schema.AllModels()...))

	return db
}

func TestResolveActor(t *testing.T) {
	document := schema.Document{Id: uuid.New(), AuthorId: uuid.New()}
	actor := uuid.New()

	assert.Equal(t, actor, ResolveActor(&document, actor))
	assert.Equal(t, document.AuthorId, ResolveActor(&document, uuid.Nil))
}

func TestRecordStatusChange(t *testing.T) {
	db := setupDb(t)

	document := schema.Document{Id: uuid.New(), AuthorId: uuid.New()}
	oldStatus := schema.Status{Id: uuid.New(), Name: "draft"}
	newStatus := schema.Status{Id: uuid.New(), Name: "reviewed"}
	actor := uuid.New()

	err := db.Transaction(func(txn *gorm.DB) error {
		return RecordStatusChange(txn, &document, oldStatus, newStatus, actor)
	})
	require.NoError(t, err)

	var activities []schema.Activity
	require.NoError(t, db.Find(&activities).Error)
	require.Len(t, activities, 1)

	activity := activities[0]
	assert.Equal(t, document.Id, activity.DocumentId)
	require.NotNil(t, activity.UserId)
	assert.Equal(t, actor, *activity.UserId)
	assert.Equal(t, schema.ActionStatusChange, activity.Action)
	assert.Equal(t, oldStatus.Id, *activity.OldStatusId)
	assert.Equal(t, newStatus.Id, *activity.NewStatusId)
	assert.Equal(t, "Status changed from draft to reviewed", activity.Notes)
}

func TestRecordTagAddedAndRemoved(t *testing.T) {
	db := setupDb(t)

	document := schema.Document{Id: uuid.New(), AuthorId: uuid.New()}
	tag := schema.Tag{Id: uuid.New(), Name: "urgent", Color: "red"}

	err := db.Transaction(func(txn *gorm.DB) error {
		if err := RecordTagAdded(txn, &document, tag, uuid.Nil); err != nil {
			return err
		}
		return RecordTagRemoved(txn, &document, tag, uuid.Nil)
	})
	require.NoError(t, err)

	var activities []schema.Activity
	require.NoError(t, db.Order("created_at ASC").Find(&activities).Error)
	require.Len(t, activities, 2)

	assert.Equal(t, schema.ActionTagAdded, activities[0].Action)
	assert.Equal(t, "Tag urgent added", activities[0].Notes)
	assert.Equal(t, schema.ActionTagRemoved, activities[1].Action)
	assert.Equal(t, "Tag urgent removed", activities[1].Notes)

	// No actor passed, so both records fall back to the document author.
	require.NotNil(t, activities[0].UserId)
	require.NotNil(t, activities[1].UserId)
	assert.Equal(t, document.AuthorId, *activities[0].UserId)
	assert.Equal(t, document.AuthorId, *activities[1].UserId)

	assert.Nil(t, activities[0].OldStatusId)
	assert.Nil(t, activities[0].NewStatusId)
}

func TestRecordRejectsInvalidAction(t *testing.T) {
	db := setupDb(t)

	document := schema.Document{Id: uuid.New(), AuthorId: uuid.New()}

	err := db.Transaction(func(txn *gorm.DB) error {
		return record(txn, schema.Activity{
			Id:         uuid.New(),
			DocumentId: document.Id,
			UserId:     &document.AuthorId,
			Action:     "launched",
		})
	})
	assert.ErrorContains(t, err, "invalid activity action")

	var count int64
	require.NoError(t, db.Model(&schema.Activity{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFailedRecordAbortsTransaction(t *testing.T) {
	db := setupDb(t)

	status := schema.Status{Id: uuid.New(), Name: "draft"}
	require.NoError(t, db.Create(&status).Error)

	document := schema.Document{Id: uuid.New(), AuthorId: uuid.New()}

	// The bad record must take the document update down with it.
	err := db.Transaction(func(txn *gorm.DB) error {
		if err := txn.Create(&schema.Tag{Id: uuid.New(), Name: "urgent", Color: "red"}).Error; err != nil {
			return err
		}
		return record(txn, schema.Activity{Id: uuid.New(), DocumentId: document.Id, Action: "launched"})
	})
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&schema.Tag{}).Count(&count).Error)
	assert.Zero(t, count)
}
