// Package syncer реализует HTTP-клиент синхронизации черновиков с удаленной
// системой учета: отправка с валидацией и ограниченными повторами, получение,
// двусторонняя сверка с разрешением конфликтов и best-effort отправка при
// закрытии. Удаленный бэкенд - черный ящик за wire-контрактом pkg/api.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/iudanet/draftsync/internal/draft"
	"github.com/iudanet/draftsync/internal/models"
	"github.com/iudanet/draftsync/pkg/api"
)

// Значения по умолчанию
const (
	// DefaultTimeout жесткий таймаут одного сетевого вызова
	DefaultTimeout = 30 * time.Second
	// DefaultProbeTimeout таймаут connectivity probe
	DefaultProbeTimeout = 5 * time.Second
	// DefaultPushSpacing пауза между отправками в bulk-синхронизации,
	// чтобы не бомбить бэкенд очередью
	DefaultPushSpacing = 500 * time.Millisecond
)

// defaultBackoff фиксированная лестница задержек между повторами.
// Последнее значение повторяется, если попыток больше, чем ступеней.
var defaultBackoff = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// Terminal sync errors
var (
	// ErrValidationFailed черновик не прошел валидацию, сеть не трогали
	ErrValidationFailed = errors.New("draft validation failed")

	// ErrMaxAttemptsReached лимит попыток исчерпан, повторов больше не будет
	ErrMaxAttemptsReached = errors.New("max sync attempts reached")

	// ErrDraftNotFound черновика нет в локальном хранилище
	ErrDraftNotFound = errors.New("draft not found")
)

// NetworkError типизированная сетевая ошибка: таймаут, обрыв или не-2xx ответ.
type NetworkError struct {
	Err        error
	StatusCode int
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Options параметры одной операции отправки.
type Options struct {
	Headers            map[string]string
	Endpoint           string
	Method             string        // Method по умолчанию POST
	Timeout            time.Duration // Timeout по умолчанию DefaultTimeout
	RetryOnFailure     bool
	ValidateBeforeSync bool
}

// Result результат отправки черновика.
type Result struct {
	Err              error    `json:"-"`
	RemoteID         string   `json:"remoteId,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	Attempts         int      `json:"attempts"`
	Success          bool     `json:"success"`
	Skipped          bool     `json:"skipped"` // Skipped черновик уже синхронизирован, отправка не требовалась
}

// Client синхронизирует черновики с удаленным бэкендом.
type Client struct {
	httpClient   *http.Client
	drafts       *draft.Manager
	logger       *slog.Logger
	done         chan struct{}
	authToken    string
	backoff      []time.Duration
	pushSpacing  time.Duration
	probeTimeout time.Duration
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithHTTPClient подменяет http.Client (для тестов).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBackoff задает лестницу задержек между повторами.
func WithBackoff(ladder []time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = ladder
	}
}

// WithPushSpacing задает паузу между отправками в PushAllPending.
func WithPushSpacing(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pushSpacing = d
	}
}

// WithProbeTimeout задает таймаут connectivity probe.
func WithProbeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.probeTimeout = d
	}
}

// WithAuthToken задает bearer-токен, добавляемый к запросам.
// Аутентификация - дело бэкенда; клиент лишь проверяет срок жизни
// токена перед bulk-отправкой, чтобы не жечь попытки впустую.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.authToken = token
	}
}

// NewClient создает sync-клиент поверх менеджера черновиков.
func NewClient(drafts *draft.Manager, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			// Редиректы ограничиваем, Authorization переносим вручную
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
		drafts:       drafts,
		logger:       logger,
		done:         make(chan struct{}),
		backoff:      defaultBackoff,
		pushSpacing:  DefaultPushSpacing,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close останавливает фоновые горутины клиента (close-flush подписки).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

// Push отправляет черновик на сервер.
// Порядок: валидация (опционально, без сети при провале) -> запрос с жестким
// таймаутом -> при успехе MarkSynced, при неудаче инкремент счетчика попыток
// и повтор по лестнице задержек, пока не исчерпан лимит попыток.
func (c *Client) Push(ctx context.Context, d *models.Draft, opts Options) *Result {
	result := &Result{}

	if opts.ValidateBeforeSync {
		vr := c.drafts.Validator().Validate(d)
		if !vr.IsValid {
			c.logger.Warn("draft failed pre-sync validation",
				"entity_id", d.EntityID, "errors", len(vr.Errors))
			result.ValidationErrors = vr.Errors
			result.Err = ErrValidationFailed
			return result
		}
	}

	// Уже синхронизированный черновик без новых правок не отправляем
	// повторно: защита от дублирующихся отправок
	if d.IsSynced {
		result.Success = true
		result.Skipped = true
		return result
	}

	for {
		if d.HasReachedMaxAttempts() {
			result.Err = ErrMaxAttemptsReached
			return result
		}

		result.Attempts++
		remoteID, err := c.doPush(ctx, d, opts)
		if err == nil {
			if _, mErr := c.drafts.MarkSynced(ctx, d.EntityID); mErr != nil {
				c.logger.Warn("failed to mark draft synced", "entity_id", d.EntityID, "error", mErr)
			} else {
				d.IsSynced = true
				d.SyncAttempts = 0
			}
			result.Success = true
			result.RemoteID = remoteID
			c.logger.Info("draft pushed", "entity_id", d.EntityID, "remote_id", remoteID, "attempts", result.Attempts)
			return result
		}

		c.logger.Warn("draft push failed",
			"entity_id", d.EntityID, "attempt", result.Attempts, "error", err)

		if updated, iErr := c.drafts.IncrementSyncAttempts(ctx, d.EntityID); iErr == nil {
			d.SyncAttempts = updated.SyncAttempts
		} else {
			// Черновика может не быть в хранилище (пришел извне) -
			// ведем счетчик на локальной копии
			d.SyncAttempts++
		}

		if !opts.RetryOnFailure || d.HasReachedMaxAttempts() {
			if d.HasReachedMaxAttempts() {
				err = fmt.Errorf("%w: %v", ErrMaxAttemptsReached, err)
			}
			result.Err = err
			return result
		}

		if sleepErr := c.sleepBackoff(ctx, result.Attempts); sleepErr != nil {
			result.Err = sleepErr
			return result
		}
	}
}

// doPush выполняет один сетевой вызов отправки.
func (c *Client) doPush(ctx context.Context, d *models.Draft, opts Options) (string, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(newPushRequest(d))
	if err != nil {
		return "", fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if c.authToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Message != "" {
			return "", &NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("server error: %s", errResp.Message)}
		}
		return "", &NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("request failed: %s", string(respBody))}
	}

	var pushResp api.PushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return pushResp.BookingID, nil
}

// Pull запрашивает черновик с сервера по entityID.
// Возвращает nil, если у сервера нет записи.
func (c *Client) Pull(ctx context.Context, entityID, endpoint string) (*models.Draft, error) {
	reqCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?entityId=%s", endpoint, entityID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("pull failed")}
	}

	var pullResp api.PullResponse
	if err := json.NewDecoder(resp.Body).Decode(&pullResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return fromWireDraft(pullResp.Draft), nil
}

// ConnectivityCheck проверяет доступность бэкенда легким HEAD-запросом
// с коротким таймаутом. Используется, чтобы решать, имеет ли смысл
// начинать sync-серию вообще.
func (c *Client) ConnectivityCheck(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// sleepBackoff ждет задержку по лестнице для номера попытки attempt (с 1).
// Прерывается отменой контекста.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	idx := attempt - 1
	if idx >= len(c.backoff) {
		idx = len(c.backoff) - 1
	}

	timer := time.NewTimer(c.backoff[idx])
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
