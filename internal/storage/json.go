package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// GetJSON читает значение по ключу и десериализует его в T.
// Возвращает ErrKeyNotFound, если ключа нет, и StorageError(serialization),
// если значение не парсится.
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, NewStorageError(KindSerialization, key, err)
	}

	return &value, nil
}

// SetJSON сериализует значение в JSON и записывает по ключу.
// Ошибка сериализации (циклические структуры и т.п.) возвращается
// как StorageError(serialization), а не роняет процесс.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return NewStorageError(KindSerialization, key, err)
	}

	return s.Set(ctx, key, data)
}

// LoadJSON как GetJSON, но отсутствие ключа не ошибка:
// возвращает (nil, nil), если записи нет.
func LoadJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	value, err := GetJSON[T](ctx, s, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}
