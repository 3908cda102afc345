package draft

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/internal/storage"
	"github.com/iudanet/draftsync/internal/version"
)

// Export сериализует черновик в человекочитаемый JSON.
// Используется для отладки и ручного восстановления, не для sync-пути.
func (m *Manager) Export(ctx context.Context, entityID string) (string, error) {
	d, err := m.Load(ctx, entityID)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", storage.ErrKeyNotFound
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", storage.NewStorageError(storage.KindSerialization, Key(entityID), err)
	}
	return string(data), nil
}

// Import разбирает JSON черновика и записывает его в хранилище.
// Версия и временные метки берутся из импортируемых данных как есть.
func (m *Manager) Import(ctx context.Context, jsonData string) (*models.Draft, error) {
	var d models.Draft
	if err := json.Unmarshal([]byte(jsonData), &d); err != nil {
		return nil, storage.NewStorageError(storage.KindSerialization, "", err)
	}

	if d.EntityID == "" {
		return nil, fmt.Errorf("imported draft has no entityId")
	}
	if d.Version < 1 {
		return nil, fmt.Errorf("imported draft has invalid version %d", d.Version)
	}

	if err := m.put(ctx, &d); err != nil {
		return nil, err
	}

	m.logger.Info("draft imported", "entity_id", d.EntityID, "version", d.Version)
	return &d, nil
}

// marshalSnapshot оборачивает текущее состояние черновика в конверт
// для истории версий.
func marshalSnapshot(d *models.Draft) (version.Snapshot, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return version.Snapshot{}, err
	}
	return version.Snapshot{
		Version:   d.Version,
		Timestamp: d.LastModifiedAt,
		Data:      raw,
	}, nil
}
