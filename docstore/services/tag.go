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

type TagService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *TagService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.Create)
	r.Get("/list", s.List)

	r.Route("/{tag_id}", func(r chi.Router) {
		r.With(auth.AdminOnly(s.db)).Delete("/", s.Delete)

		r.Post("/attach", s.Attach)
		r.Delete("/attach", s.Detach)
		r.Get("/taggings", s.ListTaggings)
	})

	return r
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (r *createTagRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Color, validation.Required, validation.Length(1, 50)),
	)
}

type createTagResponse struct {
	TagId uuid.UUID `json:"tag_id"`
}

func (s *TagService) Create(w http.ResponseWriter, r *http.Request) {
	var params createTagRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid tag: %v", err), http.StatusUnprocessableEntity)
		return
	}

	newTag := schema.Tag{Id: uuid.New(), Name: params.Name, Color: params.Color}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existingTag schema.Tag
		result := txn.Limit(1).Find(&existingTag, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate tag name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("tag with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newTag)
		if result.Error != nil {
			slog.Error("sql error creating new tag", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating tag: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createTagResponse{TagId: newTag.Id})
}

type TagInfo struct {
	Id    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

func (s *TagService) List(w http.ResponseWriter, r *http.Request) {
	var tags []schema.Tag
	result := s.db.Order("name ASC").Find(&tags)
	if result.Error != nil {
		slog.Error("sql error listing tags", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing tags: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TagInfo, 0, len(tags))
	for _, tag := range tags {
		infos = append(infos, TagInfo{Id: tag.Id, Name: tag.Name, Color: tag.Color})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *TagService) Delete(w http.ResponseWriter, r *http.Request) {
	tagId, err := utils.URLParamUUID(r, "tag_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getTagCoded(txn, tagId); err != nil {
			return err
		}

		result := txn.Where("tag_id = ?", tagId).Delete(&schema.Tagging{})
		if result.Error != nil {
			slog.Error("sql error deleting taggings for tag", "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Tag{Id: tagId})
		if result.Error != nil {
			slog.Error("sql error deleting tag", "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting tag: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type attachTagRequest struct {
	Kind       schema.TaggableKind `json:"kind"`
	TaggableId uuid.UUID           `json:"taggable_id"`
}

type attachTagResponse struct {
	Attached bool   `json:"attached"`
	Message  string `json:"message"`
}

// Attach joins the tag to any taggable entity except documents: document
// taggings must go through the document endpoints so the activity trail is
// never bypassed.
func (s *TagService) Attach(w http.ResponseWriter, r *http.Request) {
	tagId, err := utils.URLParamUUID(r, "tag_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params attachTagRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Kind == schema.TaggableDocument {
		http.Error(w, "documents are tagged via the document endpoints", http.StatusUnprocessableEntity)
		return
	}

	target, err := schema.TaggableModel(params.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var res attachTagResponse

	err = s.db.Transaction(func(txn *gorm.DB) error {
		tag, err := getTagCoded(txn, tagId)
		if err != nil {
			return err
		}

		result := txn.First(target, "id = ?", params.TaggableId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(fmt.Errorf("%v %v not found", params.Kind, params.TaggableId), http.StatusNotFound)
			}
			slog.Error("sql error looking up tagging target", "kind", params.Kind, "taggable_id", params.TaggableId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		var existing schema.Tagging
		result = txn.Limit(1).Find(&existing, "tag_id = ? AND taggable_kind = ? AND taggable_id = ?", tagId, params.Kind, params.TaggableId)
		if result.Error != nil {
			slog.Error("sql error checking for existing tagging", "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			res = attachTagResponse{Attached: false, Message: fmt.Sprintf("%v is already tagged with %v", params.Kind, tag.Name)}
			return nil
		}

		tagging := schema.Tagging{Id: uuid.New(), TagId: tagId, TaggableKind: params.Kind, TaggableId: params.TaggableId}
		result = txn.Create(&tagging)
		if result.Error != nil {
			slog.Error("sql error creating tagging", "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		res = attachTagResponse{Attached: true, Message: fmt.Sprintf("tagged with %v", tag.Name)}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error attaching tag: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

type detachTagResponse struct {
	Detached bool   `json:"detached"`
	Message  string `json:"message"`
}

func (s *TagService) Detach(w http.ResponseWriter, r *http.Request) {
	tagId, err := utils.URLParamUUID(r, "tag_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params attachTagRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Kind == schema.TaggableDocument {
		http.Error(w, "documents are untagged via the document endpoints", http.StatusUnprocessableEntity)
		return
	}

	if _, err := schema.TaggableModel(params.Kind); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var res detachTagResponse

	err = s.db.Transaction(func(txn *gorm.DB) error {
		tag, err := getTagCoded(txn, tagId)
		if err != nil {
			return err
		}

		result := txn.Where("tag_id = ? AND taggable_kind = ? AND taggable_id = ?", tagId, params.Kind, params.TaggableId).Delete(&schema.Tagging{})
		if result.Error != nil {
			slog.Error("sql error deleting tagging", "tag_id", tagId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			res = detachTagResponse{Detached: false, Message: fmt.Sprintf("%v is not tagged with %v", params.Kind, tag.Name)}
			return nil
		}

		res = detachTagResponse{Detached: true, Message: fmt.Sprintf("tag %v removed", tag.Name)}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error detaching tag: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

type TaggingInfo struct {
	Kind       schema.TaggableKind `json:"kind"`
	TaggableId uuid.UUID           `json:"taggable_id"`
}

func (s *TagService) ListTaggings(w http.ResponseWriter, r *http.Request) {
	tagId, err := utils.URLParamUUID(r, "tag_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := getTagCoded(s.db, tagId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var taggings []schema.Tagging
	result := s.db.Where("tag_id = ?", tagId).Find(&taggings)
	if result.Error != nil {
		slog.Error("sql error listing taggings", "tag_id", tagId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing taggings: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TaggingInfo, 0, len(taggings))
	for _, tagging := range taggings {
		infos = append(infos, TaggingInfo{Kind: tagging.TaggableKind, TaggableId: tagging.TaggableId})
	}

	utils.WriteJsonResponse(w, infos)
}
