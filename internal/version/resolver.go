// Package version реализует разрешение конфликтов между локальной и удаленной
// копией одной логической записи. Все функции чистые и детерминированные:
// никакой скрытой случайности, при равных timestamp всегда побеждает remote
// (порядок, наблюдаемый сервером, считается каноническим).
package version

import (
	"time"

	"github.com/iudanet/draftsync/internal/models"
)

// CompareVersions сравнивает две версии.
// Возвращает -1, 0 или 1.
func CompareVersions(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareTimestamps сравнивает два момента времени.
// Возвращает -1, 0 или 1.
func CompareTimestamps(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// HasConflict сообщает, разошлись ли две копии записи.
// Конфликт есть тогда и только тогда, когда версии различаются:
// два писателя независимо продвинулись от общей базы.
func HasConflict[T any](local, remote models.Envelope[T]) bool {
	return local.Version != remote.Version
}

// mergedVersion вычисляет версию результата слияния: max(local, remote) + 1.
// Скачок версии гарантирует, что слитая запись новее обеих исходных.
func mergedVersion[T any](local, remote models.Envelope[T]) int64 {
	v := local.Version
	if remote.Version > v {
		v = remote.Version
	}
	return v + 1
}

// ResolveLastWriteWins выбирает конверт с более поздним timestamp.
// При равных timestamp побеждает remote. Версия результата - max+1,
// ConflictResolved взводится.
func ResolveLastWriteWins[T any](local, remote models.Envelope[T]) models.Envelope[T] {
	winner := remote
	if local.Timestamp.After(remote.Timestamp) {
		winner = local
	}

	winner.Version = mergedVersion(local, remote)
	winner.ConflictResolved = true
	return winner
}

// ResolveHighestVersion выбирает конверт с большей версией.
// При равных версиях действует то же правило, что и в LWW: побеждает remote.
func ResolveHighestVersion[T any](local, remote models.Envelope[T]) models.Envelope[T] {
	winner := remote
	if local.Version > remote.Version {
		winner = local
	}

	winner.Version = mergedVersion(local, remote)
	winner.ConflictResolved = true
	return winner
}
