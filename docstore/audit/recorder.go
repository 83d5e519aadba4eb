// Package audit appends immutable activity records for tracked document
// mutations. Every recorder call must run inside the same transaction as the
// mutation it describes: if the audit write fails the transaction is aborted,
// so a status change can never be committed without its trail entry.
package audit

import (
	"fmt"
	"log/slog"
	"papertrail/docstore/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResolveActor picks the user attributed in an audit record. The acting user
// from the request context takes precedence; callers without one (e.g. a
// maintenance task) pass uuid.Nil and the record is attributed to the
// document's author.
func ResolveActor(document *schema.Document, actor uuid.UUID) uuid.UUID {
	if actor != uuid.Nil {
		return actor
	}
	return document.AuthorId
}

func record(txn *gorm.DB, activity schema.Activity) error {
	if err := schema.CheckValidAction(activity.Action); err != nil {
		return err
	}

	result := txn.Create(&activity)
	if result.Error != nil {
		slog.Error("sql error creating activity record", "document_id", activity.DocumentId, "action", activity.Action, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	return nil
}

// RecordStatusChange appends one status_change record. Callers must only
// invoke it for a real transition; setting a status to its current value is a
// no-op and produces no record.
func RecordStatusChange(txn *gorm.DB, document *schema.Document, oldStatus, newStatus schema.Status, actor uuid.UUID) error {
	actorId := ResolveActor(document, actor)
	return record(txn, schema.Activity{
		Id:          uuid.New(),
		DocumentId:  document.Id,
		UserId:      &actorId,
		Action:      schema.ActionStatusChange,
		OldStatusId: &oldStatus.Id,
		NewStatusId: &newStatus.Id,
		Notes:       fmt.Sprintf("Status changed from %v to %v", oldStatus.Name, newStatus.Name),
	})
}

func RecordTagAdded(txn *gorm.DB, document *schema.Document, tag schema.Tag, actor uuid.UUID) error {
	actorId := ResolveActor(document, actor)
	return record(txn, schema.Activity{
		Id:         uuid.New(),
		DocumentId: document.Id,
		UserId:     &actorId,
		Action:     schema.ActionTagAdded,
		Notes:      fmt.Sprintf("Tag %v added", tag.Name),
	})
}

func RecordTagRemoved(txn *gorm.DB, document *schema.Document, tag schema.Tag, actor uuid.UUID) error {
	actorId := ResolveActor(document, actor)
	return record(txn, schema.Activity{
		Id:         uuid.New(),
		DocumentId: document.Id,
		UserId:     &actorId,
		Action:     schema.ActionTagRemoved,
		Notes:      fmt.Sprintf("Tag %v removed", tag.Name),
	})
}

func RecordUpdated(txn *gorm.DB, document *schema.Document, notes string, actor uuid.UUID) error {
	actorId := ResolveActor(document, actor)
	return record(txn, schema.Activity{
		Id:         uuid.New(),
		DocumentId: document.Id,
		UserId:     &actorId,
		Action:     schema.ActionUpdated,
		Notes:      notes,
	})
}
