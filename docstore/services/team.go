package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"papertrail/docstore/auth"
	"papertrail/docstore/schema"
	"papertrail/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TeamService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *TeamService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.AdminOnly(s.db)).Post("/create", s.CreateTeam)

	r.Get("/list", s.List)

	r.Route("/{team_id}", func(r chi.Router) {
		r.With(auth.AdminOnly(s.db)).Delete("/", s.DeleteTeam)

		r.Group(func(r chi.Router) {
			r.Use(auth.AdminOrTeamLeadOnly(s.db))

			r.Post("/users/{user_id}", s.AddUserToTeam)
			r.Delete("/users/{user_id}", s.RemoveUserFromTeam)

			r.Post("/leads/{user_id}", s.AddTeamLead)
			r.Delete("/leads/{user_id}", s.RemoveTeamLead)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.TeamMemberOnly(s.db))

			r.Get("/users", s.TeamUsers)
			r.Get("/folders", s.TeamFolders)
		})
	})

	return r
}

type createTeamRequest struct {
	Name           string    `json:"name"`
	OrganizationId uuid.UUID `json:"organization_id"`
}

type createTeamResponse struct {
	TeamId uuid.UUID `json:"team_id"`
}

func (s *TeamService) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var params createTeamRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "Team name must be specified", http.StatusBadRequest)
		return
	}
	if params.OrganizationId == uuid.Nil {
		http.Error(w, "Organization must be specified", http.StatusBadRequest)
		return
	}

	newTeam := schema.Team{Id: uuid.New(), Name: params.Name, OrganizationId: params.OrganizationId}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkOrganizationExists(txn, params.OrganizationId); err != nil {
			return err
		}

		var existingTeam schema.Team
		result := txn.Limit(1).Find(&existingTeam, "name = ? AND organization_id = ?", params.Name, params.OrganizationId)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate team name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("team with name %v already exists in organization", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newTeam)
		if result.Error != nil {
			slog.Error("sql error creating new team", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createTeamResponse{TeamId: newTeam.Id})
}

// DeleteTeam removes the team along with its folders, their documents, and
// every activity and tagging attached to them.
func (s *TeamService) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, teamId); err != nil {
			return err
		}

		var folderIds []uuid.UUID
		result := txn.Model(&schema.Folder{}).Where("team_id = ?", teamId).Pluck("id", &folderIds)
		if result.Error != nil {
			slog.Error("sql error listing folders for team deletion", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if len(folderIds) > 0 {
			var documentIds []uuid.UUID
			result = txn.Model(&schema.Document{}).Where("folder_id IN ?", folderIds).Pluck("id", &documentIds)
			if result.Error != nil {
				slog.Error("sql error listing documents for team deletion", "team_id", teamId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}

			for _, documentId := range documentIds {
				if err := deleteDocument(txn, documentId); err != nil {
					return err
				}
			}

			result = txn.Where("taggable_kind = ? AND taggable_id IN ?", schema.TaggableFolder, folderIds).Delete(&schema.Tagging{})
			if result.Error != nil {
				slog.Error("sql error deleting folder taggings for team deletion", "team_id", teamId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}

			result = txn.Where("team_id = ?", teamId).Delete(&schema.Folder{})
			if result.Error != nil {
				slog.Error("sql error deleting folders for team deletion", "team_id", teamId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		result = txn.Where("taggable_kind = ? AND taggable_id = ?", schema.TaggableTeam, teamId).Delete(&schema.Tagging{})
		if result.Error != nil {
			slog.Error("sql error deleting team taggings", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Where("team_id = ?", teamId).Delete(&schema.TeamMembership{})
		if result.Error != nil {
			slog.Error("sql error deleting team memberships", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Team{Id: teamId})
		if result.Error != nil {
			slog.Error("sql error deleting team", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) AddUserToTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	membership := schema.TeamMembership{UserId: userId, TeamId: teamId}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, teamId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId); err != nil {
			return err
		}

		var existing schema.TeamMembership
		result := txn.Limit(1).Find(&existing, "user_id = ? AND team_id = ?", userId, teamId)
		if result.Error != nil {
			slog.Error("sql error checking for existing membership", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("user is already a member of team"), http.StatusConflict)
		}

		result = txn.Create(&membership)
		if result.Error != nil {
			slog.Error("sql error creating new team membership", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding user to team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) RemoveUserFromTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, teamId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId); err != nil {
			return err
		}

		if err := checkTeamMember(txn, userId, teamId); err != nil {
			return err
		}

		result := txn.Delete(&schema.TeamMembership{UserId: userId, TeamId: teamId})
		if result.Error != nil {
			slog.Error("sql error deleting team membership", "team_id", teamId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing user from team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) AddTeamLead(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, teamId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId); err != nil {
			return err
		}

		result := txn.Save(&schema.TeamMembership{TeamId: teamId, UserId: userId, IsLead: true})
		if result.Error != nil {
			slog.Error("sql error updating user to team lead", "user_id", userId, "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding team lead: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) RemoveTeamLead(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, teamId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId); err != nil {
			return err
		}

		if err := checkTeamMember(txn, userId, teamId); err != nil {
			return err
		}

		result := txn.Model(&schema.TeamMembership{TeamId: teamId, UserId: userId}).Update("is_lead", false)
		if result.Error != nil {
			slog.Error("sql error removing team lead permission", "user_id", userId, "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing team lead: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type TeamInfo struct {
	Id             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	OrganizationId uuid.UUID `json:"organization_id"`
}

func (s *TeamService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var teams []schema.Team
	var result *gorm.DB
	if user.IsAdmin {
		result = s.db.Find(&teams)
	} else {
		userTeams, err := schema.GetUserTeamIds(user.Id, s.db)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		result = s.db.Where("id IN ?", userTeams).Find(&teams)
	}

	if result.Error != nil {
		slog.Error("sql error listing accessible teams", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing teams: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TeamInfo, 0, len(teams))
	for _, team := range teams {
		infos = append(infos, TeamInfo{Id: team.Id, Name: team.Name, OrganizationId: team.OrganizationId})
	}

	utils.WriteJsonResponse(w, infos)
}

type TeamUserInfo struct {
	UserId   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	TeamLead bool      `json:"team_lead"`
}

func (s *TeamService) TeamUsers(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkTeamExists(s.db, teamId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var memberships []schema.TeamMembership
	result := s.db.Preload("User").Where("team_id = ?", teamId).Find(&memberships)
	if result.Error != nil {
		slog.Error("sql error listing team users", "team_id", teamId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing team users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TeamUserInfo, 0, len(memberships))
	for _, membership := range memberships {
		infos = append(infos, TeamUserInfo{
			UserId:   membership.UserId,
			Username: membership.User.Username,
			Email:    membership.User.Email,
			TeamLead: membership.IsLead,
		})
	}

	utils.WriteJsonResponse(w, infos)
}

// TeamFolders lists the team's top level folders.
func (s *TeamService) TeamFolders(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkTeamExists(s.db, teamId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var folders []schema.Folder
	result := s.db.Where("team_id = ? AND parent_folder_id IS NULL", teamId).Order("name ASC").Find(&folders)
	if result.Error != nil {
		slog.Error("sql error listing team folders", "team_id", teamId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing team folders: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]FolderInfo, 0, len(folders))
	for _, folder := range folders {
		infos = append(infos, FolderInfo{
			Id:             folder.Id,
			Name:           folder.Name,
			Description:    folder.Description,
			TeamId:         folder.TeamId,
			ParentFolderId: folder.ParentFolderId,
		})
	}

	utils.WriteJsonResponse(w, infos)
}
