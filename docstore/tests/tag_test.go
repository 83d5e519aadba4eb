package tests

import (
	"errors"
	"strings"
	"testing"
)

func TestDocumentTagging(t *testing.T) {
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

	res, err := admin.addDocumentTag(docId, ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Added {
		t.Fatal("tag should be added")
	}

	tags, err := admin.listDocumentTags(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].Name != "urgent" || tags[0].Color != "red" {
		t.Fatalf("invalid document tags %v", tags)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected one activity record, got %v", activities)
	}
	if activities[0].Action != "tag_added" || activities[0].Notes != "Tag urgent added" {
		t.Fatalf("invalid activity %v", activities[0])
	}

	// Re-adding the same tag is a no-op, not an error, and leaves no trace.
	res, err = admin.addDocumentTag(docId, ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added {
		t.Fatal("tag is already attached")
	}

	activities, err = admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 {
		t.Fatalf("duplicate add must not write activity records, got %v", activities)
	}

	res, err = admin.removeDocumentTag(docId, ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Removed {
		t.Fatal("tag should be removed")
	}

	activities, err = admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected two activity records, got %v", activities)
	}
	if activities[1].Action != "tag_removed" || activities[1].Notes != "Tag urgent removed" {
		t.Fatalf("invalid activity %v", activities[1])
	}

	res, err = admin.removeDocumentTag(docId, ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed {
		t.Fatal("tag is not attached")
	}

	activities, err = admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 2 {
		t.Fatalf("removing an absent tag must not write activity records, got %v", activities)
	}
}

func TestGenericTagAttach(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	res, err := admin.attachTag(ws.tagId, "team", ws.teamId)
	if err != nil {
		t.Fatal(err)
	}
	if res["attached"] != true {
		t.Fatalf("tag should be attached, got %v", res)
	}

	res, err = admin.attachTag(ws.tagId, "team", ws.teamId)
	if err != nil {
		t.Fatal(err)
	}
	if res["attached"] != false {
		t.Fatalf("tag is already attached, got %v", res)
	}

	if _, err := admin.attachTag(ws.tagId, "folder", ws.folderId); err != nil {
		t.Fatal(err)
	}

	taggings, err := admin.listTaggings(ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if len(taggings) != 2 {
		t.Fatalf("expected two taggings, got %v", taggings)
	}

	res, err = admin.detachTag(ws.tagId, "team", ws.teamId)
	if err != nil {
		t.Fatal(err)
	}
	if res["detached"] != true {
		t.Fatalf("tag should be detached, got %v", res)
	}

	res, err = admin.detachTag(ws.tagId, "team", ws.teamId)
	if err != nil {
		t.Fatal(err)
	}
	if res["detached"] != false {
		t.Fatalf("tag is already detached, got %v", res)
	}
}

func TestGenericAttachRejectsDocuments(t *testing.T) {
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

	_, err = admin.attachTag(ws.tagId, "document", docId)
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("documents must be tagged through the document endpoints, got %v", err)
	}

	_, err = admin.detachTag(ws.tagId, "document", docId)
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("documents must be untagged through the document endpoints, got %v", err)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 0 {
		t.Fatalf("rejected attaches must not write activity records, got %v", activities)
	}
}

func TestAttachTagUnknownTarget(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	_, err = admin.attachTag(ws.tagId, "team", "a73e51fd-8a55-4e20-98ae-26bc07a5b1b8")
	if err == nil {
		t.Fatal("attaching to a missing target should fail")
	}

	_, err = admin.attachTag(ws.tagId, "spaceship", ws.teamId)
	if err == nil {
		t.Fatal("unknown kinds should be rejected")
	}
}

func TestCreateTag(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createTag("urgent", "red"); err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createTag("urgent", "blue"); err == nil {
		t.Fatal("duplicate tag names should be rejected")
	}

	if _, err := admin.createTag("", "red"); err == nil {
		t.Fatal("empty tag names should be rejected")
	}

	if _, err := user.createTag("important", "green"); err != nil {
		t.Fatal(err)
	}

	tags, err := user.listTags()
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected two tags, got %v", tags)
	}
}

func TestDeleteTagRemovesTaggings(t *testing.T) {
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

	if _, err := admin.addDocumentTag(docId, ws.tagId); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.attachTag(ws.tagId, "team", ws.teamId); err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}
	if err := user.deleteTag(ws.tagId); !errors.Is(err, ErrUnauthorized) {
		t.Fatal("only admins can delete tags")
	}

	if err := admin.deleteTag(ws.tagId); err != nil {
		t.Fatal(err)
	}

	tags, err := admin.listDocumentTags(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 0 {
		t.Fatalf("document taggings should be deleted with the tag, got %v", tags)
	}

	// Trail records survive tag deletion since they only store the note text.
	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 || activities[0].Notes != "Tag urgent added" {
		t.Fatalf("activity trail should survive tag deletion, got %v", activities)
	}
}
