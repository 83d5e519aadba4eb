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

type OrganizationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *OrganizationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.Create)

		r.Route("/{organization_id}", func(r chi.Router) {
			r.Delete("/", s.Delete)

			r.Post("/users/{user_id}", s.AddUser)
			r.Delete("/users/{user_id}", s.RemoveUser)
		})
	})

	return r
}

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type createOrganizationResponse struct {
	OrganizationId uuid.UUID `json:"organization_id"`
}

func (s *OrganizationService) Create(w http.ResponseWriter, r *http.Request) {
	var params createOrganizationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "Organization name must be specified", http.StatusBadRequest)
		return
	}

	newOrganization := schema.Organization{Id: uuid.New(), Name: params.Name}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Organization
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate organization name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("organization with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newOrganization)
		if result.Error != nil {
			slog.Error("sql error creating new organization", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating organization: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createOrganizationResponse{OrganizationId: newOrganization.Id})
}

type OrganizationInfo struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (s *OrganizationService) List(w http.ResponseWriter, r *http.Request) {
	var organizations []schema.Organization
	result := s.db.Order("name ASC").Find(&organizations)
	if result.Error != nil {
		slog.Error("sql error listing organizations", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing organizations: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]OrganizationInfo, 0, len(organizations))
	for _, organization := range organizations {
		infos = append(infos, OrganizationInfo{Id: organization.Id, Name: organization.Name})
	}

	utils.WriteJsonResponse(w, infos)
}

// Delete refuses to remove an organization that still has teams. Teams own
// the folders and documents, so they must be deleted first.
func (s *OrganizationService) Delete(w http.ResponseWriter, r *http.Request) {
	organizationId, err := utils.URLParamUUID(r, "organization_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkOrganizationExists(txn, organizationId); err != nil {
			return err
		}

		var teamCount int64
		result := txn.Model(&schema.Team{}).Where("organization_id = ?", organizationId).Count(&teamCount)
		if result.Error != nil {
			slog.Error("sql error counting teams for organization", "organization_id", organizationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if teamCount != 0 {
			return CodedError(fmt.Errorf("organization still has %d teams", teamCount), http.StatusConflict)
		}

		result = txn.Model(&schema.User{}).Where("organization_id = ?", organizationId).Update("organization_id", nil)
		if result.Error != nil {
			slog.Error("sql error detaching users from organization", "organization_id", organizationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Where("taggable_kind = ? AND taggable_id = ?", schema.TaggableOrganization, organizationId).Delete(&schema.Tagging{})
		if result.Error != nil {
			slog.Error("sql error deleting organization taggings", "organization_id", organizationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Organization{Id: organizationId})
		if result.Error != nil {
			slog.Error("sql error deleting organization", "organization_id", organizationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting organization: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *OrganizationService) AddUser(w http.ResponseWriter, r *http.Request) {
	organizationId, err := utils.URLParamUUID(r, "organization_id")
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
		if err := checkOrganizationExists(txn, organizationId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId); err != nil {
			return err
		}

		result := txn.Model(&schema.User{Id: userId}).Update("organization_id", organizationId)
		if result.Error != nil {
			slog.Error("sql error adding user to organization", "organization_id", organizationId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding user to organization: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *OrganizationService) RemoveUser(w http.ResponseWriter, r *http.Request) {
	organizationId, err := utils.URLParamUUID(r, "organization_id")
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
		if err := checkOrganizationExists(txn, organizationId); err != nil {
			return err
		}

		user, err := schema.GetUser(userId, txn)
		if err != nil {
			return CodedError(err, http.StatusNotFound)
		}

		if user.OrganizationId == nil || *user.OrganizationId != organizationId {
			return CodedError(fmt.Errorf("user is not a member of organization"), http.StatusUnprocessableEntity)
		}

		result := txn.Model(&schema.User{Id: userId}).Update("organization_id", nil)
		if result.Error != nil {
			slog.Error("sql error removing user from organization", "organization_id", organizationId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing user from organization: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
