package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"papertrail/docstore/audit"
	"papertrail/docstore/auth"
	"papertrail/docstore/schema"
	"papertrail/docstore/storage"
	"papertrail/utils"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentService struct {
	db          *gorm.DB
	userAuth    auth.IdentityProvider
	storage     storage.Storage
	shareTokens *auth.ShareTokenManager
}

func (s *DocumentService) Routes() chi.Router {
	r := chi.NewRouter()

	// Share links are the one unauthenticated surface: the signed token is
	// the credential.
	r.Get("/shared/{token}", s.GetShared)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/create", s.Create)

		r.Route("/{document_id}", func(r chi.Router) {
			r.Use(auth.DocumentAccessOnly(s.db))

			r.Get("/", s.GetDocument)
			r.Post("/update", s.Update)
			r.Delete("/", s.Delete)

			r.Post("/status", s.ChangeStatus)

			r.Post("/tags/{tag_id}", s.AddTag)
			r.Delete("/tags/{tag_id}", s.RemoveTag)
			r.Get("/tags", s.ListTags)

			r.Get("/activities", s.Activities)

			r.Post("/share", s.CreateShareLink)

			r.With(checkSufficientStorage(s.storage)).Post("/attachments/{filename}", s.UploadAttachment)
			r.Get("/attachments/{filename}", s.DownloadAttachment)
		})
	})

	return r
}

type createDocumentRequest struct {
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Url        string    `json:"url"`
	FolderId   uuid.UUID `json:"folder_id"`
	StatusId   uuid.UUID `json:"status_id"`
	ScenarioId uuid.UUID `json:"scenario_id"`
}

func (r *createDocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.Url, validation.Length(0, 2048), is.URL),
		validation.Field(&r.FolderId, validation.Required),
		validation.Field(&r.StatusId, validation.Required),
		validation.Field(&r.ScenarioId, validation.Required),
	)
}

type createDocumentResponse struct {
	DocumentId uuid.UUID `json:"document_id"`
}

func (s *DocumentService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createDocumentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid document: %v", err), http.StatusUnprocessableEntity)
		return
	}

	if err := auth.CheckFolderAccess(params.FolderId, user, s.db); err != nil {
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

	newDocument := schema.Document{
		Id:         uuid.New(),
		Title:      params.Title,
		Content:    params.Content,
		Url:        params.Url,
		FolderId:   params.FolderId,
		AuthorId:   user.Id,
		StatusId:   params.StatusId,
		ScenarioId: params.ScenarioId,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getStatusCoded(txn, params.StatusId); err != nil {
			return err
		}

		if _, err := schema.GetScenario(params.ScenarioId, txn); err != nil {
			if errors.Is(err, schema.ErrScenarioNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		// Creation-time status assignment is not a transition, so no
		// activity record is written here.
		result := txn.Create(&newDocument)
		if result.Error != nil {
			slog.Error("sql error creating new document", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating document: %v", err), GetResponseCode(err))
		return
	}

	documentsCreatedMetric.Inc()

	utils.WriteJsonResponse(w, createDocumentResponse{DocumentId: newDocument.Id})
}

type DocumentInfo struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Url       string    `json:"url,omitempty"`
	FolderId  uuid.UUID `json:"folder_id"`
	Author    string    `json:"author"`
	Status    string    `json:"status"`
	Scenario  string    `json:"scenario"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func convertToDocumentInfo(document schema.Document) DocumentInfo {
	info := DocumentInfo{
		Id:        document.Id,
		Title:     document.Title,
		Content:   document.Content,
		Url:       document.Url,
		FolderId:  document.FolderId,
		CreatedAt: document.CreatedAt,
		UpdatedAt: document.UpdatedAt,
	}
	if document.Author != nil {
		info.Author = document.Author.Username
	}
	if document.Status != nil {
		info.Status = document.Status.Name
	}
	if document.Scenario != nil {
		info.Scenario = document.Scenario.Name
	}
	return info
}

func (s *DocumentService) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	document, err := schema.GetDocument(documentId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrDocumentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error retrieving document: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToDocumentInfo(document))
}

type updateDocumentRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Url     *string `json:"url"`
}

func (r *updateDocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Content, validation.NilOrNotEmpty),
		validation.Field(&r.Url, validation.Length(0, 2048)),
	)
}

func (s *DocumentService) Update(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params updateDocumentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid update: %v", err), http.StatusUnprocessableEntity)
		return
	}

	updates := map[string]interface{}{}
	if params.Title != nil {
		updates["title"] = *params.Title
	}
	if params.Content != nil {
		updates["content"] = *params.Content
	}
	if params.Url != nil {
		updates["url"] = *params.Url
	}

	if len(updates) == 0 {
		utils.WriteSuccess(w)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		document, err := schema.GetDocument(documentId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrDocumentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.Document{Id: documentId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating document", "document_id", documentId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if err := audit.RecordUpdated(txn, &document, "Document attributes updated", user.Id); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating document: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type changeStatusRequest struct {
	StatusId uuid.UUID `json:"status_id"`
}

type changeStatusResponse struct {
	Changed   bool   `json:"changed"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status"`
}

// ChangeStatus updates the document's status and appends the status_change
// activity record in the same transaction. Setting the current status again
// is a no-op reported with changed=false. The update is guarded on the
// status value read at the start of the transaction; losing that race to a
// concurrent writer fails with a conflict rather than recording a trail
// entry with a stale old status.
func (s *DocumentService) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params changeStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.StatusId == uuid.Nil {
		http.Error(w, "status_id must be specified", http.StatusBadRequest)
		return
	}

	var res changeStatusResponse

	err = s.db.Transaction(func(txn *gorm.DB) error {
		document, err := schema.GetDocument(documentId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrDocumentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		newStatus, err := getStatusCoded(txn, params.StatusId)
		if err != nil {
			return err
		}

		if document.StatusId == newStatus.Id {
			res = changeStatusResponse{Changed: false, NewStatus: newStatus.Name}
			return nil
		}

		oldStatus, err := getStatusCoded(txn, document.StatusId)
		if err != nil {
			return err
		}

		result := txn.Model(&schema.Document{}).
			Where("id = ? AND status_id = ?", document.Id, oldStatus.Id).
			Update("status_id", newStatus.Id)
		if result.Error != nil {
			slog.Error("sql error updating document status", "document_id", documentId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("document %v was modified concurrently, please retry", documentId), http.StatusConflict)
		}

		if err := audit.RecordStatusChange(txn, &document, oldStatus, newStatus, user.Id); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		res = changeStatusResponse{Changed: true, OldStatus: oldStatus.Name, NewStatus: newStatus.Name}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error changing document status: %v", err), GetResponseCode(err))
		return
	}

	if res.Changed {
		statusChangesMetric.Inc()
		slog.Info("document status changed", "document_id", documentId, "old_status", res.OldStatus, "new_status", res.NewStatus, "user_id", user.Id)
	}

	utils.WriteJsonResponse(w, res)
}

type tagDocumentResponse struct {
	Added   bool   `json:"added"`
	Message string `json:"message"`
}

// AddTag creates the tag join for the document. Adding a tag that is already
// present is reported as added=false with no new join row and no activity
// record.
func (s *DocumentService) AddTag(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tagId, err := utils.URLParamUUID(r, "tag_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var res tagDocumentResponse

	err = s.db.Transaction(func(txn *gorm.DB) error {
		document, err := schema.GetDocument(documentId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrDocumentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		tag, err := getTagCoded(txn, tagId)
		if err != nil {
			return err
		}

		var existing schema.Tagging
		result := txn.Limit(1).Find(&existing, "tag_id = ? AND taggable_kind = ? AND taggable_id = ?", tag.Id, schema.TaggableDocument, document.Id)
		if result.Error != nil {
			slog.Error("sql error checking for existing tagging", "document_id", documentId, "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			res = tagDocumentResponse{Added: false, Message: fmt.Sprintf("document is already tagged with %v", tag.Name)}
			return nil
		}

		tagging := schema.Tagging{Id: uuid.New(), TagId: tag.Id, TaggableKind: schema.TaggableDocument, TaggableId: document.Id}
		result = txn.Create(&tagging)
		if result.Error != nil {
			slog.Error("sql error creating tagging", "document_id", documentId, "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if err := audit.RecordTagAdded(txn, &document, tag, user.Id); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		res = tagDocumentResponse{Added: true, Message: fmt.Sprintf("tagged with %v", tag.Name)}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error tagging document: %v", err), GetResponseCode(err))
		return
	}

	if res.Added {
		tagsAddedMetric.Inc()
	}

	utils.WriteJsonResponse(w, res)
}

type untagDocumentResponse struct {
	Removed bool   `json:"removed"`
	Message string `json:"message"`
}

// RemoveTag deletes the tag join for the document. Removing a tag that is
// not present is reported as removed=false with no activity record.
func (s *DocumentService) RemoveTag(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tagId, err := utils.URLParamUUID(r, "tag_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var res untagDocumentResponse

	err = s.db.Transaction(func(txn *gorm.DB) error {
		document, err := schema.GetDocument(documentId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrDocumentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		tag, err := getTagCoded(txn, tagId)
		if err != nil {
			return err
		}

		result := txn.Where("tag_id = ? AND taggable_kind = ? AND taggable_id = ?", tag.Id, schema.TaggableDocument, document.Id).Delete(&schema.Tagging{})
		if result.Error != nil {
			slog.Error("sql error deleting tagging", "document_id", documentId, "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			res = untagDocumentResponse{Removed: false, Message: fmt.Sprintf("document is not tagged with %v", tag.Name)}
			return nil
		}

		if err := audit.RecordTagRemoved(txn, &document, tag, user.Id); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		res = untagDocumentResponse{Removed: true, Message: fmt.Sprintf("tag %v removed", tag.Name)}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error untagging document: %v", err), GetResponseCode(err))
		return
	}

	if res.Removed {
		tagsRemovedMetric.Inc()
	}

	utils.WriteJsonResponse(w, res)
}

func (s *DocumentService) ListTags(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var taggings []schema.Tagging
	result := s.db.Preload("Tag").Where("taggable_kind = ? AND taggable_id = ?", schema.TaggableDocument, documentId).Find(&taggings)
	if result.Error != nil {
		slog.Error("sql error listing document tags", "document_id", documentId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing document tags: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TagInfo, 0, len(taggings))
	for _, tagging := range taggings {
		if tagging.Tag != nil {
			infos = append(infos, TagInfo{Id: tagging.Tag.Id, Name: tagging.Tag.Name, Color: tagging.Tag.Color})
		}
	}

	utils.WriteJsonResponse(w, infos)
}

type ActivityInfo struct {
	Id        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status,omitempty"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func convertToActivityInfo(activity schema.Activity) ActivityInfo {
	info := ActivityInfo{
		Id:        activity.Id,
		Action:    activity.Action,
		Notes:     activity.Notes,
		CreatedAt: activity.CreatedAt,
	}
	if activity.User != nil {
		info.User = activity.User.Username
	} else if activity.UserId == nil {
		info.User = "deleted user"
	}
	if activity.OldStatus != nil {
		info.OldStatus = activity.OldStatus.Name
	}
	if activity.NewStatus != nil {
		info.NewStatus = activity.NewStatus.Name
	}
	return info
}

// Activities returns the document's audit trail ordered oldest first.
func (s *DocumentService) Activities(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var activities []schema.Activity
	result := s.db.
		Preload("User").Preload("OldStatus").Preload("NewStatus").
		Where("document_id = ?", documentId).
		Order("created_at ASC").
		Find(&activities)
	if result.Error != nil {
		slog.Error("sql error listing document activities", "document_id", documentId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing document activities: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ActivityInfo, 0, len(activities))
	for _, activity := range activities {
		infos = append(infos, convertToActivityInfo(activity))
	}

	utils.WriteJsonResponse(w, infos)
}

// Delete removes the document along with its activity records and tag joins
// in one transaction so no orphaned rows survive. Attachments are cleaned up
// after the delete commits.
func (s *DocumentService) Delete(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		return deleteDocument(txn, documentId)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting document: %v", err), GetResponseCode(err))
		return
	}

	if err := s.storage.Delete(storage.DocumentDir(documentId)); err != nil {
		slog.Error("error removing document attachments", "document_id", documentId, "error", err)
	}

	documentsDeletedMetric.Inc()

	utils.WriteSuccess(w)
}

func deleteDocument(txn *gorm.DB, documentId uuid.UUID) error {
	if err := checkDocumentExists(txn, documentId); err != nil {
		return err
	}

	result := txn.Where("document_id = ?", documentId).Delete(&schema.Activity{})
	if result.Error != nil {
		slog.Error("sql error deleting document activities", "document_id", documentId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	result = txn.Where("taggable_kind = ? AND taggable_id = ?", schema.TaggableDocument, documentId).Delete(&schema.Tagging{})
	if result.Error != nil {
		slog.Error("sql error deleting document taggings", "document_id", documentId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	result = txn.Delete(&schema.Document{Id: documentId})
	if result.Error != nil {
		slog.Error("sql error deleting document", "document_id", documentId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return nil
}

type createShareLinkRequest struct {
	TtlHours int `json:"ttl_hours"`
}

type createShareLinkResponse struct {
	Token string `json:"token"`
}

func (s *DocumentService) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createShareLinkRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	ttl := 24 * time.Hour
	if params.TtlHours > 0 {
		ttl = time.Duration(params.TtlHours) * time.Hour
	}

	token, err := s.shareTokens.CreateShareToken(documentId, ttl)
	if err != nil {
		slog.Error("error creating share token", "document_id", documentId, "error", err)
		http.Error(w, "error creating share link", http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, createShareLinkResponse{Token: token})
}

func (s *DocumentService) GetShared(w http.ResponseWriter, r *http.Request) {
	token, err := utils.URLParam(r, "token")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	documentId, err := s.shareTokens.VerifyShareToken(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	document, err := schema.GetDocument(documentId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrDocumentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error retrieving shared document: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToDocumentInfo(document))
}

func (s *DocumentService) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	filename, err := utils.URLParam(r, "filename")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filename = filepath.Base(filename)

	err = s.storage.Write(storage.AttachmentPath(documentId, filename), r.Body)
	if err != nil {
		slog.Error("error saving attachment", "document_id", documentId, "filename", filename, "error", err)
		http.Error(w, "error saving attachment", http.StatusInternalServerError)
		return
	}

	attachmentUploadMetric.Inc()

	utils.WriteSuccess(w)
}

func (s *DocumentService) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	documentId, err := utils.URLParamUUID(r, "document_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	filename, err := utils.URLParam(r, "filename")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filename = filepath.Base(filename)

	exists, err := s.storage.Exists(storage.AttachmentPath(documentId, filename))
	if err != nil {
		http.Error(w, "error checking for attachment", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, fmt.Sprintf("attachment %v not found", filename), http.StatusNotFound)
		return
	}

	size, err := s.storage.Size(storage.AttachmentPath(documentId, filename))
	if err != nil {
		slog.Error("error getting attachment size", "document_id", documentId, "filename", filename, "error", err)
		http.Error(w, "error reading attachment", http.StatusInternalServerError)
		return
	}

	file, err := s.storage.Read(storage.AttachmentPath(documentId, filename))
	if err != nil {
		slog.Error("error reading attachment", "document_id", documentId, "filename", filename, "error", err)
		http.Error(w, "error reading attachment", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if _, err := io.Copy(w, file); err != nil {
		slog.Error("error streaming attachment", "document_id", documentId, "filename", filename, "error", err)
	}
}
