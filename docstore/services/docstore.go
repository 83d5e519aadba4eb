package services

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"papertrail/docstore/auth"
	"papertrail/docstore/schema"
	"papertrail/docstore/storage"
	"papertrail/utils"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocStore struct {
	user         UserService
	team         TeamService
	organization OrganizationService
	folder       FolderService
	document     DocumentService
	tag          TagService
	status       StatusService
	scenario     ScenarioService

	db      *gorm.DB
	storage storage.Storage
	stop    chan bool
}

func NewDocStore(db *gorm.DB, store storage.Storage, userAuth auth.IdentityProvider, secret []byte) DocStore {
	shareTokens := auth.NewShareTokenManager(slices.Concat(secret, []byte("share")))

	return DocStore{
		user:         UserService{db: db, userAuth: userAuth},
		team:         TeamService{db: db, userAuth: userAuth},
		organization: OrganizationService{db: db, userAuth: userAuth},
		folder:       FolderService{db: db, userAuth: userAuth},
		document: DocumentService{
			db:          db,
			userAuth:    userAuth,
			storage:     store,
			shareTokens: shareTokens,
		},
		tag:      TagService{db: db, userAuth: userAuth},
		status:   StatusService{db: db, userAuth: userAuth},
		scenario: ScenarioService{db: db, userAuth: userAuth},
		db:       db,
		storage:  store,
		stop:     make(chan bool, 1),
	}
}

func (d *DocStore) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", d.user.Routes())
	r.Mount("/team", d.team.Routes())
	r.Mount("/organization", d.organization.Routes())
	r.Mount("/folder", d.folder.Routes())
	r.Mount("/document", d.document.Routes())
	r.Mount("/tag", d.tag.Routes())
	r.Mount("/status", d.status.Routes())
	r.Mount("/scenario", d.scenario.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

// attachmentSweep deletes attachment directories whose document no longer
// exists. Document deletion removes storage best effort, so a crash between
// the db transaction and the storage delete can leave orphans behind.
func (d *DocStore) attachmentSweep() {
	entries, err := d.storage.List("attachments")
	if err != nil {
		slog.Error("attachment sweep: error listing attachment dirs", "error", err)
		return
	}

	for _, entry := range entries {
		documentId, err := uuid.Parse(entry)
		if err != nil {
			continue
		}

		var count int64
		result := d.db.Model(&schema.Document{}).Where("id = ?", documentId).Count(&count)
		if result.Error != nil {
			slog.Error("attachment sweep: sql error checking document", "document_id", documentId, "error", result.Error)
			return
		}

		if count == 0 {
			if err := d.storage.Delete(storage.DocumentDir(documentId)); err != nil {
				slog.Error("attachment sweep: error deleting orphaned attachments", "document_id", documentId, "error", err)
				continue
			}
			slog.Info("attachment sweep: deleted orphaned attachments", "document_id", documentId)
		}
	}
}

func (d *DocStore) AttachmentSweeper(interval time.Duration) {
	slog.Info("attachment sweep: starting")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.attachmentSweep()
		case <-d.stop:
			slog.Info("attachment sweep: process stopped")
			return
		}
	}
}

func (d *DocStore) StopAttachmentSweeper() {
	close(d.stop)
}
