package syncer

import (
	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/pkg/api"
)

// toWireDraft приводит локальный черновик к wire-формату.
// Счетчик попыток и флаги синхронизации остаются на клиенте.
func toWireDraft(d *models.Draft) api.Draft {
	return api.Draft{
		ID:             d.ID,
		EntityID:       d.EntityID,
		Fields:         api.BookingFields(d.Fields),
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		LastModifiedAt: d.LastModifiedAt,
	}
}

// fromWireDraft разворачивает wire-черновик в локальную модель.
// Состояние синхронизации выставляет вызывающий.
func fromWireDraft(w *api.Draft) *models.Draft {
	if w == nil {
		return nil
	}
	return &models.Draft{
		ID:             w.ID,
		EntityID:       w.EntityID,
		Fields:         models.BookingFields(w.Fields),
		Version:        w.Version,
		CreatedAt:      w.CreatedAt,
		LastModifiedAt: w.LastModifiedAt,
	}
}

// newPushRequest оборачивает черновик в запрос отправки.
func newPushRequest(d *models.Draft) api.PushRequest {
	return api.PushRequest{
		Draft: toWireDraft(d),
		Metadata: api.PushMetadata{
			DraftID:   d.ID,
			Version:   d.Version,
			Timestamp: d.LastModifiedAt,
		},
	}
}
