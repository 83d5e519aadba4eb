package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsCreatedMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "papertrail_documents_created", Help: "Documents created"})
	documentsDeletedMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "papertrail_documents_deleted", Help: "Documents deleted"})
	statusChangesMetric    = promauto.NewCounter(prometheus.CounterOpts{Name: "papertrail_status_changes", Help: "Document status transitions recorded"})
	tagsAddedMetric        = promauto.NewCounter(prometheus.CounterOpts{Name: "papertrail_tags_added", Help: "Tags added to documents"})
	tagsRemovedMetric      = promauto.NewCounter(prometheus.CounterOpts{Name: "papertrail_tags_removed", Help: "Tags removed from documents"})
	attachmentUploadMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "papertrail_attachment_uploads", Help: "Attachment uploads"})
)
