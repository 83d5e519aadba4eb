package tests

import (
	"errors"
	"testing"
)

func TestFolderSiblingNames(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	orgId, err := admin.createOrganization("acme")
	if err != nil {
		t.Fatal(err)
	}
	teamId, err := admin.createTeam("team1", orgId)
	if err != nil {
		t.Fatal(err)
	}

	root, err := admin.createFolder("reports", teamId, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createFolder("reports", teamId, nil)
	if err == nil {
		t.Fatal("duplicate sibling name at root should fail")
	}

	// The same name is fine under a different parent.
	child, err := admin.createFolder("reports", teamId, &root)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createFolder("reports", teamId, &root)
	if err == nil {
		t.Fatal("duplicate sibling name under parent should fail")
	}

	info, err := admin.folderInfo(child)
	if err != nil {
		t.Fatal(err)
	}
	if info.Path != "reports / reports" {
		t.Fatalf("invalid folder path %v", info.Path)
	}
}

func TestFolderAccess(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	orgId, err := admin.createOrganization("acme")
	if err != nil {
		t.Fatal(err)
	}
	teamId, err := admin.createTeam("team1", orgId)
	if err != nil {
		t.Fatal(err)
	}

	folderId, err := admin.createFolder("reports", teamId, nil)
	if err != nil {
		t.Fatal(err)
	}

	outsider, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = outsider.folderInfo(folderId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("non members should not see team folders")
	}

	_, err = outsider.createFolder("mine", teamId, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("non members should not create folders in the team")
	}

	err = admin.addUserToTeam(teamId, outsider.userId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = outsider.folderInfo(folderId)
	if err != nil {
		t.Fatal(err)
	}
}

func TestFolderMoveRejectsCycles(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	orgId, err := admin.createOrganization("acme")
	if err != nil {
		t.Fatal(err)
	}
	teamId, err := admin.createTeam("team1", orgId)
	if err != nil {
		t.Fatal(err)
	}

	a, err := admin.createFolder("a", teamId, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := admin.createFolder("b", teamId, &a)
	if err != nil {
		t.Fatal(err)
	}
	c, err := admin.createFolder("c", teamId, &b)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.updateFolder(a, map[string]interface{}{"parent_folder_id": c})
	if err == nil {
		t.Fatal("moving a folder under its own descendant should fail")
	}

	err = admin.updateFolder(a, map[string]interface{}{"parent_folder_id": a})
	if err == nil {
		t.Fatal("moving a folder under itself should fail")
	}

	// A legal move: c becomes a child of a directly.
	err = admin.updateFolder(c, map[string]interface{}{"parent_folder_id": a})
	if err != nil {
		t.Fatal(err)
	}

	info, err := admin.folderInfo(c)
	if err != nil {
		t.Fatal(err)
	}
	if info.Path != "a / c" {
		t.Fatalf("invalid path after move: %v", info.Path)
	}
}

func TestFolderSubtreeCountsAndDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, nil)

	sub, err := admin.createFolder("archive", ws.teamId, &ws.folderId)
	if err != nil {
		t.Fatal(err)
	}

	doc1, err := admin.createDocument("one", "contents", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := admin.createDocument("two", "contents", sub, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	info, err := admin.folderInfo(ws.folderId)
	if err != nil {
		t.Fatal(err)
	}
	if info.TotalDocuments != 2 {
		t.Fatalf("expected 2 documents in subtree, got %d", info.TotalDocuments)
	}

	docs, err := admin.listFolderDocuments(ws.folderId)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Id.String() != doc1 {
		t.Fatalf("direct listing should only show direct documents, got %v", docs)
	}

	err = admin.deleteFolder(ws.folderId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.folderInfo(sub)
	if err == nil {
		t.Fatal("subfolder should be deleted with parent")
	}
	_, err = admin.documentInfo(doc1)
	if err == nil {
		t.Fatal("document should be deleted with folder")
	}
	_, err = admin.documentInfo(doc2)
	if err == nil {
		t.Fatal("nested document should be deleted with folder")
	}
}
