package tests

import (
	"errors"
	"sort"
	"testing"

	"papertrail/docstore/services"
)

func sortTeamUsers(users []services.TeamUserInfo) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}

func TestCreateTeamRequiresOrganization(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createTeam("team1", "")
	if err == nil {
		t.Fatal("team creation without organization should fail")
	}

	orgId, err := admin.createOrganization("acme")
	if err != nil {
		t.Fatal(err)
	}

	teamId, err := admin.createTeam("team1", orgId)
	if err != nil {
		t.Fatal(err)
	}
	if teamId == "" {
		t.Fatal("missing team id")
	}

	_, err = admin.createTeam("team1", orgId)
	if err == nil {
		t.Fatal("duplicate team name in organization should fail")
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createTeam("team2", orgId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("regular users cannot create teams")
	}
}

func TestTeamMembershipAndLeads(t *testing.T) {
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

	user1, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}
	user2, err := env.newUser("xyz")
	if err != nil {
		t.Fatal(err)
	}

	err = user1.addUserToTeam(teamId, user2.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("non members cannot add users to a team")
	}

	err = admin.addUserToTeam(teamId, user1.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.addUserToTeam(teamId, user1.userId)
	if err == nil {
		t.Fatal("adding a user twice should fail")
	}

	err = admin.addTeamLead(teamId, user1.userId)
	if err != nil {
		t.Fatal(err)
	}

	// Team leads can manage membership.
	err = user1.addUserToTeam(teamId, user2.userId)
	if err != nil {
		t.Fatal(err)
	}

	users, err := user1.listTeamUsers(teamId)
	if err != nil {
		t.Fatal(err)
	}
	sortTeamUsers(users)
	if len(users) != 2 || users[0].Username != "abc" || users[1].Username != "xyz" {
		t.Fatalf("invalid team users %v", users)
	}
	if !users[0].TeamLead || users[1].TeamLead {
		t.Fatalf("invalid lead flags %v", users)
	}

	err = admin.removeTeamLead(teamId, user1.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = user1.removeUserFromTeam(teamId, user2.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("demoted lead cannot manage membership")
	}

	err = admin.removeUserFromTeam(teamId, user2.userId)
	if err != nil {
		t.Fatal(err)
	}

	users, err = admin.listTeamUsers(teamId)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Username != "abc" {
		t.Fatalf("invalid team users %v", users)
	}
}

func TestListTeams(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	orgId, err := admin.createOrganization("acme")
	if err != nil {
		t.Fatal(err)
	}
	team1, err := admin.createTeam("team1", orgId)
	if err != nil {
		t.Fatal(err)
	}
	_, err = admin.createTeam("team2", orgId)
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.addUserToTeam(team1, user.userId)
	if err != nil {
		t.Fatal(err)
	}

	teams, err := admin.listTeams()
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 2 {
		t.Fatalf("admin should see both teams, got %v", teams)
	}

	teams, err = user.listTeams()
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 1 || teams[0].Id.String() != team1 {
		t.Fatalf("user should only see their team, got %v", teams)
	}
}

func TestDeleteTeamRemovesFoldersAndDocuments(t *testing.T) {
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

	err = admin.deleteTeam(ws.teamId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.documentInfo(docId)
	if err == nil {
		t.Fatal("document should be gone after team deletion")
	}

	_, err = admin.folderInfo(ws.folderId)
	if err == nil {
		t.Fatal("folder should be gone after team deletion")
	}

	taggings, err := admin.listTaggings(ws.tagId)
	if err != nil {
		t.Fatal(err)
	}
	if len(taggings) != 0 {
		t.Fatalf("taggings should be cleaned up, got %v", taggings)
	}
}
