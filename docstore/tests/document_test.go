package tests

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"papertrail/docstore/schema"
	"papertrail/docstore/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestCreateDocumentWritesNoActivity(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	info, err := admin.documentInfo(docId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != "report" || info.Status != "draft" || info.Scenario != "audit-prep" {
		t.Fatalf("invalid document info %v", info)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 0 {
		t.Fatalf("creation must not write activity records, got %v", activities)
	}
}

func TestChangeStatusRecordsActivity(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.changeStatus(docId, ws.reviewedId)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.OldStatus != "draft" || res.NewStatus != "reviewed" {
		t.Fatalf("invalid change status result %v", res)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected one activity record, got %v", activities)
	}

	activity := activities[0]
	if activity.Action != "status_change" {
		t.Fatalf("invalid action %v", activity.Action)
	}
	if activity.OldStatus != "draft" || activity.NewStatus != "reviewed" {
		t.Fatalf("invalid statuses in activity %v", activity)
	}
	if activity.Notes != "Status changed from draft to reviewed" {
		t.Fatalf("invalid notes %v", activity.Notes)
	}
	if activity.User != adminUsername {
		t.Fatalf("invalid activity user %v", activity.User)
	}
}

func TestChangeStatusToSameStatusIsNoop(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.changeStatus(docId, ws.draftId)
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed {
		t.Fatal("setting the current status again should report changed=false")
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 0 {
		t.Fatalf("no-op status change must not write activity records, got %v", activities)
	}
}

func TestChangeStatusUnknownStatus(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.changeStatus(docId, "a73e51fd-8a55-4e20-98ae-26bc07a5b1b8")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("unknown status should return not found, got %v", err)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 0 {
		t.Fatalf("failed status change must not write activity records, got %v", activities)
	}
}

func TestActivityTrailOrdering(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.changeStatus(docId, ws.reviewedId); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.addDocumentTag(docId, ws.tagId); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.changeStatus(docId, ws.draftId); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.removeDocumentTag(docId, ws.tagId); err != nil {
		t.Fatal(err)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{"status_change", "tag_added", "status_change", "tag_removed"}
	if len(activities) != len(expected) {
		t.Fatalf("expected %d activity records, got %v", len(expected), activities)
	}
	for i, action := range expected {
		if activities[i].Action != action {
			t.Fatalf("expected action %v at position %d, got %v", action, i, activities[i].Action)
		}
	}

	if activities[0].Notes != "Status changed from draft to reviewed" {
		t.Fatalf("invalid notes %v", activities[0].Notes)
	}
	if activities[1].Notes != "Tag urgent added" {
		t.Fatalf("invalid notes %v", activities[1].Notes)
	}
	if activities[2].Notes != "Status changed from reviewed to draft" {
		t.Fatalf("invalid notes %v", activities[2].Notes)
	}
	if activities[3].Notes != "Tag urgent removed" {
		t.Fatalf("invalid notes %v", activities[3].Notes)
	}
}

func TestUpdateDocumentRecordsActivity(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.updateDocument(docId, map[string]interface{}{"title": "updated report"})
	if err != nil {
		t.Fatal(err)
	}

	info, err := admin.documentInfo(docId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != "updated report" || info.Content != "contents" {
		t.Fatalf("invalid document after update %v", info)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 || activities[0].Action != "updated" {
		t.Fatalf("expected one updated record, got %v", activities)
	}
}

func TestDeleteDocumentRemovesTrail(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.changeStatus(docId, ws.reviewedId); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.addDocumentTag(docId, ws.tagId); err != nil {
		t.Fatal(err)
	}

	err = admin.deleteDocument(docId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.documentInfo(docId)
	if err == nil {
		t.Fatal("document should be deleted")
	}

	// Joins and activity rows must be gone with it.
	taggings, err := admin.listTaggings(ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if len(taggings) != 0 {
		t.Fatalf("taggings should be deleted with the document, got %v", taggings)
	}

	var activityCount int64
	err = env.db.Model(&schema.Activity{}).Where("document_id = ?", docId).Count(&activityCount).Error
	if err != nil {
		t.Fatal(err)
	}
	if activityCount != 0 {
		t.Fatalf("activity records should be deleted with the document, found %d", activityCount)
	}
}

func TestDocumentAccess(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	outsider, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = outsider.documentInfo(docId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("non members should not read team documents")
	}

	_, err = outsider.changeStatus(docId, ws.reviewedId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("non members should not change status")
	}

	err = admin.addUserToTeam(ws.teamId, outsider.userId)
	if err != nil {
		t.Fatal(err)
	}

	res, err := outsider.changeStatus(docId, ws.reviewedId)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed {
		t.Fatal("member should be able to change status")
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 || activities[0].User != "abc" {
		t.Fatalf("activity should be attributed to the acting user, got %v", activities)
	}
}

func TestShareLink(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	token, err := admin.createShareLink(docId, 1)
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("missing share token")
	}

	// Share links work without any login.
	anon := env.newClient()
	info, err := anon.getSharedDocument(token)
	if err != nil {
		t.Fatal(err)
	}
	if info.Id.String() != docId || info.Title != "report" {
		t.Fatalf("invalid shared document %v", info)
	}

	_, err = anon.getSharedDocument("not-a-real-token")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("garbage tokens should be rejected")
	}
}

func TestAttachments(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("attachment contents here")
	err = admin.uploadAttachment(docId, "notes.txt", bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}

	downloaded, err := admin.downloadAttachment(docId, "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(downloaded, content) {
		t.Fatalf("attachment contents mismatch: %q", downloaded)
	}

	size, err := env.storage.Size(storage.AttachmentPath(uuid.MustParse(docId), "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len(content)) {
		t.Fatalf("expected attachment size %d, got %d", len(content), size)
	}

	_, err = admin.downloadAttachment(docId, "missing.txt")
	if err == nil {
		t.Fatal("missing attachment should return an error")
	}
}

func TestChangeStatusConcurrentConflict(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	docId, err := admin.createDocument("report", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	// Flip the status out from under the handler after it has read the
	// document but before its guarded update runs.
	fired := false
	err = env.db.Callback().Update().Before("gorm:update").Register("concurrent_writer", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "documents" {
			return
		}
		fired = true
		tx.Session(&gorm.Session{NewDB: true}).Exec("UPDATE documents SET status_id = ? WHERE id = ?", ws.reviewedId, docId)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := env.db.Callback().Update().Remove("concurrent_writer"); err != nil {
			t.Fatal(err)
		}
	}()

	_, err = admin.changeStatus(docId, ws.reviewedId)
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("concurrently modified document should be rejected: %v", err)
	}
	if !fired {
		t.Fatal("status update never reached the database")
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 0 {
		t.Fatalf("rejected status change should leave no trail, got %v", activities)
	}
}
