package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"papertrail/docstore/auth"
	"papertrail/docstore/schema"
	"papertrail/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FolderService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *FolderService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.Create)

	r.Route("/{folder_id}", func(r chi.Router) {
		r.Use(auth.FolderAccessOnly(s.db))

		r.Get("/", s.GetFolder)
		r.Post("/update", s.Update)
		r.Delete("/", s.Delete)
		r.Get("/documents", s.ListDocuments)
	})

	return r
}

type createFolderRequest struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	ParentFolderId *uuid.UUID `json:"parent_folder_id"`
	TeamId         uuid.UUID  `json:"team_id"`
}

func (r *createFolderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.TeamId, validation.Required),
	)
}

type createFolderResponse struct {
	FolderId uuid.UUID `json:"folder_id"`
}

// checkDuplicateSibling enforces that no two folders under the same parent
// in the same team share a name.
func checkDuplicateSibling(txn *gorm.DB, teamId uuid.UUID, parentId *uuid.UUID, name string, excludeId uuid.UUID) error {
	query := txn.Limit(1).Where("team_id = ? AND name = ?", teamId, name)
	if parentId != nil {
		query = query.Where("parent_folder_id = ?", *parentId)
	} else {
		query = query.Where("parent_folder_id IS NULL")
	}
	if excludeId != uuid.Nil {
		query = query.Where("id != ?", excludeId)
	}

	var duplicate schema.Folder
	result := query.Find(&duplicate)
	if result.Error != nil {
		slog.Error("sql error checking for duplicate sibling folder", "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected != 0 {
		return CodedError(fmt.Errorf("a sibling folder with name %v already exists", name), http.StatusConflict)
	}
	return nil
}

func (s *FolderService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createFolderRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid folder: %v", err), http.StatusUnprocessableEntity)
		return
	}

	if err := auth.CheckTeamAccess(params.TeamId, user, s.db); err != nil {
		if errors.Is(err, schema.ErrTeamNotFound) {
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

	newFolder := schema.Folder{
		Id:             uuid.New(),
		Name:           params.Name,
		Description:    params.Description,
		ParentFolderId: params.ParentFolderId,
		TeamId:         params.TeamId,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if params.ParentFolderId != nil {
			parent, err := schema.GetFolder(*params.ParentFolderId, txn)
			if err != nil {
				if errors.Is(err, schema.ErrFolderNotFound) {
					return CodedError(err, http.StatusNotFound)
				}
				return CodedError(err, http.StatusInternalServerError)
			}
			if parent.TeamId != params.TeamId {
				return CodedError(errors.New("parent folder belongs to a different team"), http.StatusUnprocessableEntity)
			}
		}

		if err := checkDuplicateSibling(txn, params.TeamId, params.ParentFolderId, params.Name, uuid.Nil); err != nil {
			return err
		}

		result := txn.Create(&newFolder)
		if result.Error != nil {
			slog.Error("sql error creating new folder", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating folder: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createFolderResponse{FolderId: newFolder.Id})
}

type FolderInfo struct {
	Id             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	ParentFolderId *uuid.UUID `json:"parent_folder_id,omitempty"`
	TeamId         uuid.UUID  `json:"team_id"`
	Path           string     `json:"path"`
	TotalDocuments int64      `json:"total_documents"`
}

// subtreeFolderIds returns the folder plus all descendants, walking level by
// level.
func subtreeFolderIds(txn *gorm.DB, rootId uuid.UUID) ([]uuid.UUID, error) {
	all := []uuid.UUID{rootId}
	frontier := []uuid.UUID{rootId}

	for len(frontier) > 0 {
		var children []schema.Folder
		result := txn.Where("parent_folder_id IN ?", frontier).Find(&children)
		if result.Error != nil {
			slog.Error("sql error listing child folders", "error", result.Error)
			return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		frontier = frontier[:0]
		for _, child := range children {
			all = append(all, child.Id)
			frontier = append(frontier, child.Id)
		}
	}

	return all, nil
}

func countSubtreeDocuments(txn *gorm.DB, rootId uuid.UUID) (int64, error) {
	ids, err := subtreeFolderIds(txn, rootId)
	if err != nil {
		return 0, err
	}

	var count int64
	result := txn.Model(&schema.Document{}).Where("folder_id IN ?", ids).Count(&count)
	if result.Error != nil {
		slog.Error("sql error counting subtree documents", "folder_id", rootId, "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return count, nil
}

func (s *FolderService) GetFolder(w http.ResponseWriter, r *http.Request) {
	folderId, err := utils.URLParamUUID(r, "folder_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var info FolderInfo

	err = s.db.Transaction(func(txn *gorm.DB) error {
		folder, err := schema.GetFolder(folderId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrFolderNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		path, err := schema.FolderPath(folderId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		total, err := countSubtreeDocuments(txn, folderId)
		if err != nil {
			return err
		}

		info = FolderInfo{
			Id:             folder.Id,
			Name:           folder.Name,
			Description:    folder.Description,
			ParentFolderId: folder.ParentFolderId,
			TeamId:         folder.TeamId,
			Path:           path,
			TotalDocuments: total,
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error retrieving folder: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, info)
}

type updateFolderRequest struct {
	Name           *string    `json:"name"`
	Description    *string    `json:"description"`
	ParentFolderId *uuid.UUID `json:"parent_folder_id"`
	MoveToRoot     bool       `json:"move_to_root"`
}

func (r *updateFolderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
	)
}

// Update renames, redescribes, or moves the folder. A move is rejected if
// the new parent chain would contain the folder itself.
func (s *FolderService) Update(w http.ResponseWriter, r *http.Request) {
	folderId, err := utils.URLParamUUID(r, "folder_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateFolderRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid folder update: %v", err), http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		folder, err := schema.GetFolder(folderId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrFolderNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		name := folder.Name
		if params.Name != nil {
			name = *params.Name
		}

		parentId := folder.ParentFolderId
		if params.MoveToRoot {
			parentId = nil
		} else if params.ParentFolderId != nil {
			parentId = params.ParentFolderId
		}

		if parentId != nil {
			parent, err := schema.GetFolder(*parentId, txn)
			if err != nil {
				if errors.Is(err, schema.ErrFolderNotFound) {
					return CodedError(err, http.StatusNotFound)
				}
				return CodedError(err, http.StatusInternalServerError)
			}
			if parent.TeamId != folder.TeamId {
				return CodedError(errors.New("parent folder belongs to a different team"), http.StatusUnprocessableEntity)
			}

			if err := schema.CheckFolderParent(folderId, parentId, txn); err != nil {
				if errors.Is(err, schema.ErrFolderCycle) {
					return CodedError(err, http.StatusUnprocessableEntity)
				}
				return CodedError(err, http.StatusInternalServerError)
			}
		}

		if err := checkDuplicateSibling(txn, folder.TeamId, parentId, name, folderId); err != nil {
			return err
		}

		updates := map[string]interface{}{"name": name, "parent_folder_id": parentId}
		if params.Description != nil {
			updates["description"] = *params.Description
		}

		result := txn.Model(&schema.Folder{Id: folderId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating folder", "folder_id", folderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating folder: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// Delete removes the folder subtree: all descendant folders, the documents
// they contain, and those documents' activity records and tag joins.
func (s *FolderService) Delete(w http.ResponseWriter, r *http.Request) {
	folderId, err := utils.URLParamUUID(r, "folder_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		ids, err := subtreeFolderIds(txn, folderId)
		if err != nil {
			return err
		}

		var documents []schema.Document
		result := txn.Where("folder_id IN ?", ids).Find(&documents)
		if result.Error != nil {
			slog.Error("sql error listing subtree documents", "folder_id", folderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		for _, document := range documents {
			if err := deleteDocument(txn, document.Id); err != nil {
				return err
			}
		}

		result = txn.Where("taggable_kind = ? AND taggable_id IN ?", schema.TaggableFolder, ids).Delete(&schema.Tagging{})
		if result.Error != nil {
			slog.Error("sql error deleting folder taggings", "folder_id", folderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		// Children before parents so the parent reference is never dangling.
		for i := len(ids) - 1; i >= 0; i-- {
			result = txn.Delete(&schema.Folder{Id: ids[i]})
			if result.Error != nil {
				slog.Error("sql error deleting folder", "folder_id", ids[i], "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting folder: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *FolderService) ListDocuments(w http.ResponseWriter, r *http.Request) {
	folderId, err := utils.URLParamUUID(r, "folder_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var documents []schema.Document
	result := s.db.
		Preload("Author").Preload("Status").Preload("Scenario").
		Where("folder_id = ?", folderId).
		Order("created_at ASC").
		Find(&documents)
	if result.Error != nil {
		slog.Error("sql error listing folder documents", "folder_id", folderId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing folder documents: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]DocumentInfo, 0, len(documents))
	for _, document := range documents {
		infos = append(infos, convertToDocumentInfo(document))
	}

	utils.WriteJsonResponse(w, infos)
}
