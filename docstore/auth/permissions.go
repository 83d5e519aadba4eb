package auth

import (
	"errors"
	"fmt"
	"net/http"
	"papertrail/docstore/schema"
	"papertrail/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func isTeamLead(teamId, userId uuid.UUID, db *gorm.DB) (bool, error) {
	membership, err := schema.GetMembership(teamId, userId, db)
	if err != nil {
		if errors.Is(err, schema.ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}

	return membership.IsLead, nil
}

func isTeamMember(teamId, userId uuid.UUID, db *gorm.DB) (bool, error) {
	_, err := schema.GetMembership(teamId, userId, db)
	if err != nil {
		if errors.Is(err, schema.ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func AdminOrTeamLeadOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			teamId, err := utils.URLParamUUID(r, "team_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			lead, err := isTeamLead(teamId, user.Id, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && !lead {
				http.Error(w, "user must be admin or team lead to access endpoint", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func TeamMemberOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			teamId, err := utils.URLParamUUID(r, "team_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			member, err := isTeamMember(teamId, user.Id, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && !member {
				http.Error(w, "user must be team member to access endpoint", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// CheckTeamAccess verifies that the user is a member of the team (admins
// have access to every team).
func CheckTeamAccess(teamId uuid.UUID, user schema.User, db *gorm.DB) error {
	if user.IsAdmin {
		if _, err := schema.GetTeam(teamId, db); err != nil {
			return err
		}
		return nil
	}

	member, err := isTeamMember(teamId, user.Id, db)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("user %v is not a member of team %v", user.Id, teamId)
	}

	return nil
}

// CheckFolderAccess verifies that the user can act on folders owned by the
// folder's team. Admins can act on any folder.
func CheckFolderAccess(folderId uuid.UUID, user schema.User, db *gorm.DB) error {
	if user.IsAdmin {
		if _, err := schema.GetFolder(folderId, db); err != nil {
			return err
		}
		return nil
	}

	folder, err := schema.GetFolder(folderId, db)
	if err != nil {
		return err
	}

	member, err := isTeamMember(folder.TeamId, user.Id, db)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("user %v is not a member of the team owning folder %v", user.Id, folderId)
	}

	return nil
}

// FolderAccessOnly guards routes carrying a {folder_id} parameter.
func FolderAccessOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			folderId, err := utils.URLParamUUID(r, "folder_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if err := CheckFolderAccess(folderId, user, db); err != nil {
				if errors.Is(err, schema.ErrFolderNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				if errors.Is(err, schema.ErrDbAccessFailed) {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// DocumentAccessOnly guards routes carrying a {document_id} parameter. Access
// is resolved through the owning folder's team.
func DocumentAccessOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			documentId, err := utils.URLParamUUID(r, "document_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			document, err := schema.GetDocument(documentId, db, false)
			if err != nil {
				if errors.Is(err, schema.ErrDocumentNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if err := CheckFolderAccess(document.FolderId, user, db); err != nil {
				if errors.Is(err, schema.ErrDbAccessFailed) {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
