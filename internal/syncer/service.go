package syncer

import (
	"context"
	"time"

	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/internal/version"
)

// BulkResult агрегированный итог отправки всех несинхронизированных черновиков.
type BulkResult struct {
	Pushed  int `json:"pushed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// PushAllPending отправляет все несинхронизированные черновики на
// baseEndpoint, выдерживая паузу между отправками. Если задан bearer-токен
// и он уже истек, серия не начинается: каждая отправка все равно получила
// бы 401 и сожгла бы попытку.
func (c *Client) PushAllPending(ctx context.Context, baseEndpoint string) (*BulkResult, error) {
	if err := c.checkAuthToken(); err != nil {
		return nil, err
	}

	drafts, err := c.drafts.ListUnsynced(ctx)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{}
	for i, d := range drafts {
		if i > 0 {
			if err := c.sleepSpacing(ctx); err != nil {
				return result, err
			}
		}

		res := c.Push(ctx, d, Options{
			Endpoint:           baseEndpoint,
			RetryOnFailure:     false,
			ValidateBeforeSync: true,
		})
		switch {
		case res.Skipped:
			result.Skipped++
		case res.Success:
			result.Pushed++
		default:
			result.Failed++
		}
	}

	c.logger.Info("bulk push finished",
		"pushed", result.Pushed, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// SyncOutcome итог двусторонней сверки одного черновика.
type SyncOutcome struct {
	Draft            *models.Draft `json:"draft,omitempty"`
	Action           string        `json:"action"` // Action none | pushed | pulled | merged
	ConflictResolved bool          `json:"conflictResolved"`
}

// TwoWaySync сверяет локальную и удаленную копию черновика.
// Если копия одна - она распространяется на другую сторону. Если обе
// существуют и версии разошлись, конфликт разрешается last-write-wins
// и слитая запись отправляется обратно. Конфликт никогда не отдается
// вызывающему как ошибка: он всегда авторазрешается.
func (c *Client) TwoWaySync(ctx context.Context, entityID, fetchEndpoint, pushEndpoint string) (*SyncOutcome, error) {
	remote, err := c.Pull(ctx, entityID, fetchEndpoint)
	if err != nil {
		return nil, err
	}

	local, err := c.drafts.Load(ctx, entityID)
	if err != nil {
		return nil, err
	}

	switch {
	case local == nil && remote == nil:
		return &SyncOutcome{Action: "none"}, nil

	case local == nil:
		// Есть только удаленная копия: принимаем ее локально
		remote.IsSynced = true
		remote.SyncAttempts = 0
		if err := c.drafts.Adopt(ctx, remote); err != nil {
			return nil, err
		}
		c.logger.Info("remote draft adopted", "entity_id", entityID, "version", remote.Version)
		return &SyncOutcome{Action: "pulled", Draft: remote}, nil

	case remote == nil:
		res := c.Push(ctx, local, Options{Endpoint: pushEndpoint, RetryOnFailure: true, ValidateBeforeSync: true})
		if !res.Success {
			return nil, res.Err
		}
		return &SyncOutcome{Action: "pushed", Draft: local}, nil
	}

	localEnv := local.Envelope()
	remoteEnv := remote.Envelope()

	if !version.HasConflict(localEnv, remoteEnv) {
		// Версии совпадают: обе стороны уже видят одно и то же
		return &SyncOutcome{Action: "none", Draft: local}, nil
	}

	merged := version.ResolveLastWriteWins(localEnv, remoteEnv)
	mergedDraft := merged.Data
	mergedDraft.Version = merged.Version
	mergedDraft.LastModifiedAt = time.Now().UTC()
	mergedDraft.IsSynced = false
	mergedDraft.SyncAttempts = 0

	c.logger.Info("draft conflict resolved",
		"entity_id", entityID,
		"local_version", local.Version,
		"remote_version", remote.Version,
		"merged_version", mergedDraft.Version)

	if err := c.drafts.Adopt(ctx, &mergedDraft); err != nil {
		return nil, err
	}

	res := c.Push(ctx, &mergedDraft, Options{Endpoint: pushEndpoint, RetryOnFailure: true})
	if !res.Success {
		// Слитая копия остается локально и уйдет со следующей серией
		return &SyncOutcome{Action: "merged", Draft: &mergedDraft, ConflictResolved: true}, res.Err
	}

	return &SyncOutcome{Action: "merged", Draft: &mergedDraft, ConflictResolved: true}, nil
}

func (c *Client) sleepSpacing(ctx context.Context) error {
	timer := time.NewTimer(c.pushSpacing)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
