package services

import (
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

type StatusService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *StatusService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.Create)
		r.Delete("/{status_id}", s.Delete)
	})

	return r
}

type createStatusRequest struct {
	Name string `json:"name"`
}

func (r *createStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
	)
}

type createStatusResponse struct {
	StatusId uuid.UUID `json:"status_id"`
}

func (s *StatusService) Create(w http.ResponseWriter, r *http.Request) {
	var params createStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid status: %v", err), http.StatusUnprocessableEntity)
		return
	}

	newStatus := schema.Status{Id: uuid.New(), Name: params.Name}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Status
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate status name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("status with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newStatus)
		if result.Error != nil {
			slog.Error("sql error creating new status", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating status: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createStatusResponse{StatusId: newStatus.Id})
}

type StatusInfo struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (s *StatusService) List(w http.ResponseWriter, r *http.Request) {
	var statuses []schema.Status
	result := s.db.Order("name ASC").Find(&statuses)
	if result.Error != nil {
		slog.Error("sql error listing statuses", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing statuses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]StatusInfo, 0, len(statuses))
	for _, status := range statuses {
		infos = append(infos, StatusInfo{Id: status.Id, Name: status.Name})
	}

	utils.WriteJsonResponse(w, infos)
}

// Delete refuses to remove a status that any document currently holds, or
// that any activity row references. Audit history stays interpretable.
func (s *StatusService) Delete(w http.ResponseWriter, r *http.Request) {
	statusId, err := utils.URLParamUUID(r, "status_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getStatusCoded(txn, statusId); err != nil {
			return err
		}

		var documentCount int64
		result := txn.Model(&schema.Document{}).Where("status_id = ?", statusId).Count(&documentCount)
		if result.Error != nil {
			slog.Error("sql error counting documents for status", "status_id", statusId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if documentCount != 0 {
			return CodedError(fmt.Errorf("status is in use by %d documents", documentCount), http.StatusConflict)
		}

		var activityCount int64
		result = txn.Model(&schema.Activity{}).Where("old_status_id = ? OR new_status_id = ?", statusId, statusId).Count(&activityCount)
		if result.Error != nil {
			slog.Error("sql error counting activities for status", "status_id", statusId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if activityCount != 0 {
			return CodedError(fmt.Errorf("status is referenced by %d activity records", activityCount), http.StatusConflict)
		}

		result = txn.Delete(&schema.Status{Id: statusId})
		if result.Error != nil {
			slog.Error("sql error deleting status", "status_id", statusId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting status: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type ScenarioService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ScenarioService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.Create)
		r.Delete("/{scenario_id}", s.Delete)
	})

	return r
}

type createScenarioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *createScenarioRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
	)
}

type createScenarioResponse struct {
	ScenarioId uuid.UUID `json:"scenario_id"`
}

func (s *ScenarioService) Create(w http.ResponseWriter, r *http.Request) {
	var params createScenarioRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid scenario: %v", err), http.StatusUnprocessableEntity)
		return
	}

	newScenario := schema.Scenario{Id: uuid.New(), Name: params.Name, Description: params.Description}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Scenario
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate scenario name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("scenario with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newScenario)
		if result.Error != nil {
			slog.Error("sql error creating new scenario", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating scenario: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createScenarioResponse{ScenarioId: newScenario.Id})
}

type ScenarioInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

func (s *ScenarioService) List(w http.ResponseWriter, r *http.Request) {
	var scenarios []schema.Scenario
	result := s.db.Order("name ASC").Find(&scenarios)
	if result.Error != nil {
		slog.Error("sql error listing scenarios", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing scenarios: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ScenarioInfo, 0, len(scenarios))
	for _, scenario := range scenarios {
		infos = append(infos, ScenarioInfo{Id: scenario.Id, Name: scenario.Name, Description: scenario.Description})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *ScenarioService) Delete(w http.ResponseWriter, r *http.Request) {
	scenarioId, err := utils.URLParamUUID(r, "scenario_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetScenario(scenarioId, txn); err != nil {
			return CodedError(err, http.StatusNotFound)
		}

		var documentCount int64
		result := txn.Model(&schema.Document{}).Where("scenario_id = ?", scenarioId).Count(&documentCount)
		if result.Error != nil {
			slog.Error("sql error counting documents for scenario", "scenario_id", scenarioId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if documentCount != 0 {
			return CodedError(fmt.Errorf("scenario is in use by %d documents", documentCount), http.StatusConflict)
		}

		result = txn.Where("taggable_kind = ? AND taggable_id = ?", schema.TaggableScenario, scenarioId).Delete(&schema.Tagging{})
		if result.Error != nil {
			slog.Error("sql error deleting taggings for scenario", "scenario_id", scenarioId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Scenario{Id: scenarioId})
		if result.Error != nil {
			slog.Error("sql error deleting scenario", "scenario_id", scenarioId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting scenario: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
