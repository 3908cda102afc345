package version

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/internal/storage"
)

// ErrVersionNotFound возвращается, когда запрошенной версии нет в истории.
var ErrVersionNotFound = fmt.Errorf("version not found in history")

// DefaultHistorySize количество версий, хранимых в истории по умолчанию.
const DefaultHistorySize = 10

// Snapshot один элемент истории версий: конверт с сырыми данными.
type Snapshot = models.Envelope[json.RawMessage]

// AppendToHistory добавляет конверт в начало истории по ключу historyKey.
// История хранится newest-first и обрезается до maxSize элементов.
func AppendToHistory(ctx context.Context, s storage.Store, historyKey string, env Snapshot, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultHistorySize
	}

	history, err := loadHistory(ctx, s, historyKey)
	if err != nil {
		return err
	}

	history = append([]Snapshot{env}, history...)
	if len(history) > maxSize {
		history = history[:maxSize]
	}

	return storage.SetJSON(ctx, s, historyKey, history)
}

// GetHistory возвращает историю версий по ключу, newest-first.
// Отсутствие истории не ошибка: возвращается пустой срез.
func GetHistory(ctx context.Context, s storage.Store, historyKey string) ([]Snapshot, error) {
	return loadHistory(ctx, s, historyKey)
}

// RestoreVersion находит в истории конверт с заданной версией.
func RestoreVersion(ctx context.Context, s storage.Store, historyKey string, version int64) (*Snapshot, error) {
	history, err := loadHistory(ctx, s, historyKey)
	if err != nil {
		return nil, err
	}

	for i := range history {
		if history[i].Version == version {
			return &history[i], nil
		}
	}

	return nil, ErrVersionNotFound
}

func loadHistory(ctx context.Context, s storage.Store, historyKey string) ([]Snapshot, error) {
	history, err := storage.LoadJSON[[]Snapshot](ctx, s, historyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if history == nil {
		return []Snapshot{}, nil
	}
	return *history, nil
}
