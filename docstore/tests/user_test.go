package tests

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"papertrail/docstore/services"
)

func sortUserList(users []services.UserInfo) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.signup(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.signup(username, email, password)
		if err == nil {
			t.Fatal("duplicate signup should fail")
		}

		err = client.login(loginInfo{Email: "user@mail.com", Password: password})
		if err == nil {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: username, Password: "password"})
		if err == nil {
			t.Fatal("login fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}

		info, err := client.userInfo()
		if err != nil {
			t.Fatal(err)
		}

		if info.Username != username || info.Email != email || info.Id.String() != client.userId || info.Admin {
			t.Fatalf("invalid info %v", info)
		}
	}
}

func TestAddUser(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	client := env.newClient()

	_, err = user.addUser("xyz", "xyz@mail.com", "123")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users cannot add users")
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if !strings.Contains(err.Error(), "no user found for given email") {
		t.Fatalf("no login should be created: %v", err)
	}

	_, err = admin.addUser("xyz", "xyz@mail.com", "123")
	if err != nil {
		t.Fatal(err)
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if err != nil {
		t.Fatal("new user should be created")
	}
}

func checkAdminStatus(c client, t *testing.T, isAdmin bool) {
	info, err := c.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Admin != isAdmin {
		t.Fatalf("expected IsAdmin to be %v, got %v", isAdmin, info.Admin)
	}
}

func TestPromoteDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user1, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	user2, err := env.newUser("xyz")
	if err != nil {
		t.Fatal(err)
	}

	err = user1.promoteAdmin(user1.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users can't promote admins")
	}

	checkAdminStatus(admin, t, true)
	checkAdminStatus(user1, t, false)

	err = admin.promoteAdmin(user1.userId)
	if err != nil {
		t.Fatalf("admin should be able to promote admin: %v", err)
	}

	checkAdminStatus(user1, t, true)

	err = user1.promoteAdmin(user2.userId)
	if err != nil {
		t.Fatal("new admin should be able to promote admin")
	}

	err = admin.demoteAdmin(user1.userId)
	if err != nil {
		t.Fatalf("admin should be demoted %v", err)
	}

	checkAdminStatus(user1, t, false)

	err = user1.demoteAdmin(user2.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("non admin cannot demote admin")
	}
}

func TestDeleteUserReassignsDocuments(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, &user)

	docId, err := user.createDocument("report", "findings", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	info, err := admin.documentInfo(docId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Author != "abc" {
		t.Fatalf("invalid document author %v", info.Author)
	}

	err = admin.deleteUser(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	info, err = admin.documentInfo(docId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Author != adminUsername {
		t.Fatalf("document should be reassigned to admin, got author %v", info.Author)
	}

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	sortUserList(users)
	if len(users) != 1 || users[0].Id.String() != admin.userId {
		t.Fatal("invalid users")
	}
}

func TestDeleteUserClearsActivityActor(t *testing.T) {
	env := setupTestEnvWithDsn(t, "file::memory:?_foreign_keys=on")

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	ws := setupWorkspace(t, &admin, &user)

	docId, err := user.createDocument("report", "findings", ws.folderId, ws.draftId, ws.scenarioId)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.changeStatus(docId, ws.reviewedId); err != nil {
		t.Fatal(err)
	}

	if _, err := admin.attachTag(ws.tagId, "user", user.userId); err != nil {
		t.Fatal(err)
	}

	err = admin.deleteUser(user.userId)
	if err != nil {
		t.Fatalf("deleting a user with recorded activities should succeed: %v", err)
	}

	activities, err := admin.listActivities(docId)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}
	if activities[0].User != "deleted user" {
		t.Fatalf("activity actor should render as deleted, got %v", activities[0].User)
	}
	if activities[0].Notes != "Status changed from draft to reviewed" {
		t.Fatalf("activity notes should survive user deletion, got %v", activities[0].Notes)
	}

	taggings, err := admin.listTaggings(ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if len(taggings) != 0 {
		t.Fatalf("taggings of deleted user should be removed, got %v", taggings)
	}
}

func TestDeleteLastAdminRefused(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.deleteUser(admin.userId)
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("sole admin should not be deletable: %v", err)
	}

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Id.String() != admin.userId {
		t.Fatal("admin should still exist")
	}
}
