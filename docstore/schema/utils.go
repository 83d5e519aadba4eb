package schema

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrMembershipNotFound   = errors.New("team membership not found")
	ErrFolderNotFound       = errors.New("folder not found")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrStatusNotFound       = errors.New("status not found")
	ErrScenarioNotFound     = errors.New("scenario not found")
	ErrTagNotFound          = errors.New("tag not found")
	ErrFolderCycle          = errors.New("folder parent assignment would create a cycle")
	ErrDbAccessFailed       = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetOrganization(orgId uuid.UUID, db *gorm.DB) (Organization, error) {
	var org Organization

	result := db.First(&org, "id = ?", orgId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return org, ErrOrganizationNotFound
		}
		slog.Error("sql error in get organization", "organization_id", orgId, "error", result.Error)
		return org, ErrDbAccessFailed
	}

	return org, nil
}

func GetTeam(teamId uuid.UUID, db *gorm.DB) (Team, error) {
	var team Team

	result := db.First(&team, "id = ?", teamId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return team, ErrTeamNotFound
		}
		slog.Error("sql error in get team", "team_id", teamId, "error", result.Error)
		return team, ErrDbAccessFailed
	}

	return team, nil
}

func GetMembership(teamId, userId uuid.UUID, db *gorm.DB) (TeamMembership, error) {
	var membership TeamMembership

	result := db.First(&membership, "team_id = ? and user_id = ?", teamId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return membership, ErrMembershipNotFound
		}
		slog.Error("sql error in get team membership", "team_id", teamId, "user_id", userId, "error", result.Error)
		return membership, ErrDbAccessFailed
	}

	return membership, nil
}

func GetUserTeamIds(userId uuid.UUID, db *gorm.DB) ([]uuid.UUID, error) {
	var memberships []TeamMembership
	result := db.Find(&memberships, "user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error in get user team ids", "user_id", userId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, membership := range memberships {
		ids = append(ids, membership.TeamId)
	}
	return ids, nil
}

func GetFolder(folderId uuid.UUID, db *gorm.DB) (Folder, error) {
	var folder Folder

	result := db.First(&folder, "id = ?", folderId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return folder, ErrFolderNotFound
		}
		slog.Error("sql error in get folder", "folder_id", folderId, "error", result.Error)
		return folder, ErrDbAccessFailed
	}

	return folder, nil
}

func GetDocument(documentId uuid.UUID, db *gorm.DB, loadRefs bool) (Document, error) {
	var document Document

	var result *gorm.DB = db
	if loadRefs {
		result = result.Preload("Folder").Preload("Author").Preload("Status").Preload("Scenario")
	}
	result = result.First(&document, "id = ?", documentId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return document, ErrDocumentNotFound
		}
		slog.Error("sql error in get document", "document_id", documentId, "error", result.Error)
		return document, ErrDbAccessFailed
	}

	return document, nil
}

func GetStatus(statusId uuid.UUID, db *gorm.DB) (Status, error) {
	var status Status

	result := db.First(&status, "id = ?", statusId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return status, ErrStatusNotFound
		}
		slog.Error("sql error in get status", "status_id", statusId, "error", result.Error)
		return status, ErrDbAccessFailed
	}

	return status, nil
}

func GetScenario(scenarioId uuid.UUID, db *gorm.DB) (Scenario, error) {
	var scenario Scenario

	result := db.First(&scenario, "id = ?", scenarioId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return scenario, ErrScenarioNotFound
		}
		slog.Error("sql error in get scenario", "scenario_id", scenarioId, "error", result.Error)
		return scenario, ErrDbAccessFailed
	}

	return scenario, nil
}

func GetTag(tagId uuid.UUID, db *gorm.DB) (Tag, error) {
	var tag Tag

	result := db.First(&tag, "id = ?", tagId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tag, ErrTagNotFound
		}
		slog.Error("sql error in get tag", "tag_id", tagId, "error", result.Error)
		return tag, ErrDbAccessFailed
	}

	return tag, nil
}

// FolderPath returns the folder's ancestor chain joined by " / ", root first.
// The visited set guards against walking a cyclic parent chain forever in
// case one predates the cycle validation.
func FolderPath(folderId uuid.UUID, db *gorm.DB) (string, error) {
	names := make([]string, 0, 4)
	visited := map[uuid.UUID]struct{}{}

	next := &folderId
	for next != nil {
		if _, ok := visited[*next]; ok {
			return "", ErrFolderCycle
		}
		visited[*next] = struct{}{}

		folder, err := GetFolder(*next, db)
		if err != nil {
			return "", err
		}
		names = append(names, folder.Name)
		next = folder.ParentFolderId
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " / "), nil
}

// CheckFolderParent walks up from the proposed parent and rejects the
// assignment if the chain reaches the folder itself.
func CheckFolderParent(folderId uuid.UUID, parentId *uuid.UUID, db *gorm.DB) error {
	visited := map[uuid.UUID]struct{}{}

	next := parentId
	for next != nil {
		if *next == folderId {
			return ErrFolderCycle
		}
		if _, ok := visited[*next]; ok {
			return ErrFolderCycle
		}
		visited[*next] = struct{}{}

		parent, err := GetFolder(*next, db)
		if err != nil {
			return err
		}
		next = parent.ParentFolderId
	}

	return nil
}
