package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// closeFlushTimeout короткий таймаут best-effort отправки при закрытии
const closeFlushTimeout = 2 * time.Second

// FlushOnClose подписывает клиент на flush-триггер хоста (закрытие страницы,
// SIGTERM): по каждой посылке текущий черновик entityID отправляется
// fire-and-forget, без ожидания ответа и без повторов.
//
// Это исключительно мера снижения потерь, не гарантия доставки:
// авторитативный путь доставки - обычный Push с повторами.
func (c *Client) FlushOnClose(trigger <-chan struct{}, entityID, endpoint string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case _, ok := <-trigger:
				if !ok {
					return
				}
				c.fireAndForget(entityID, endpoint)
			case <-c.done:
				return
			}
		}
	}()
}

// fireAndForget отправляет черновик, игнорируя результат.
func (c *Client) fireAndForget(entityID, endpoint string) {
	ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
	defer cancel()

	d, err := c.drafts.Load(ctx, entityID)
	if err != nil || d == nil || d.IsSynced {
		return
	}

	body, err := json.Marshal(newPushRequest(d))
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("close-time flush failed", "entity_id", entityID, "error", err)
		return
	}
	_ = resp.Body.Close()

	c.logger.Debug("close-time flush sent", "entity_id", entityID, "status", resp.StatusCode)
}
