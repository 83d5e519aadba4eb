package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"papertrail/docstore/schema"
	"papertrail/docstore/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkOrganizationExists(txn *gorm.DB, orgId uuid.UUID) error {
	if _, err := schema.GetOrganization(orgId, txn); err != nil {
		if errors.Is(err, schema.ErrOrganizationNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkTeamExists(txn *gorm.DB, teamId uuid.UUID) error {
	if _, err := schema.GetTeam(teamId, txn); err != nil {
		if errors.Is(err, schema.ErrTeamNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkTeamMember(txn *gorm.DB, userId, teamId uuid.UUID) error {
	if _, err := schema.GetMembership(teamId, userId, txn); err != nil {
		if errors.Is(err, schema.ErrMembershipNotFound) {
			return CodedError(errors.New("user is not a member of team"), http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkDocumentExists(txn *gorm.DB, documentId uuid.UUID) error {
	if _, err := schema.GetDocument(documentId, txn, false); err != nil {
		if errors.Is(err, schema.ErrDocumentNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func getStatusCoded(txn *gorm.DB, statusId uuid.UUID) (schema.Status, error) {
	status, err := schema.GetStatus(statusId, txn)
	if err != nil {
		if errors.Is(err, schema.ErrStatusNotFound) {
			return status, CodedError(err, http.StatusNotFound)
		}
		return status, CodedError(err, http.StatusInternalServerError)
	}
	return status, nil
}

func getTagCoded(txn *gorm.DB, tagId uuid.UUID) (schema.Tag, error) {
	tag, err := schema.GetTag(tagId, txn)
	if err != nil {
		if errors.Is(err, schema.ErrTagNotFound) {
			return tag, CodedError(err, http.StatusNotFound)
		}
		return tag, CodedError(err, http.StatusInternalServerError)
	}
	return tag, nil
}

func checkDiskUsage(store storage.Storage) error {
	stats, err := store.Usage()
	if err != nil {
		slog.Error("unable to get disk usage from storage", "error", err)
		return CodedError(errors.New("unable to get disk usage"), http.StatusInternalServerError)
	}
	oneMib := uint64(1024 * 1024)
	// Either 20% disk needs to be free or 20Gb (in case the disk is very large)
	threshold := min(stats.TotalBytes/5, 20*1024*oneMib)
	if stats.FreeBytes < threshold {
		used := (stats.TotalBytes - stats.FreeBytes) / oneMib
		total := stats.TotalBytes / oneMib
		delta := (threshold - stats.FreeBytes) / oneMib
		return CodedError(fmt.Errorf("insufficient disk space available, usage: %d/%d Mib, please clear %d Mib", used, total, delta), http.StatusInsufficientStorage)
	}
	return nil
}

func checkSufficientStorage(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			if err := checkDiskUsage(store); err != nil {
				slog.Error(err.Error())
				http.Error(w, err.Error(), GetResponseCode(err))
				return
			}
			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(handler)
	}
}
