// Package api содержит wire-типы протокола синхронизации черновиков.
// Контракт: POST <endpoint> для отправки, GET <endpoint>?entityId=<id>
// для получения, HEAD <url> как probe доступности.
//
// Типы самодостаточны и могут использоваться внешними реализациями
// бэкенда без зависимости от внутренних моделей движка.
package api

import "time"

// BookingFields пользовательские поля бронирования в wire-формате.
type BookingFields struct {
	ScheduledAt        *time.Time `json:"scheduledTime,omitempty"`
	CustomerName       string     `json:"customerName,omitempty"`
	ContactNumber      string     `json:"contactNumber,omitempty"`
	CountryCode        string     `json:"countryCode,omitempty"`
	Address1           string     `json:"address1,omitempty"`
	Address2           string     `json:"address2,omitempty"`
	ServiceType        string     `json:"serviceType,omitempty"`
	DiscountCode       string     `json:"discountCode,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CorrelationID      string     `json:"correlationId,omitempty"`
	DiscountPercentage int        `json:"discountPercentage,omitempty"`
}

// Draft черновик бронирования в wire-формате. Локальная бухгалтерия
// клиента (счетчик попыток, флаги синхронизации) на проводе не передается.
type Draft struct {
	CreatedAt      time.Time     `json:"createdAt"`
	LastModifiedAt time.Time     `json:"lastModifiedAt"`
	ID             string        `json:"id"`
	EntityID       string        `json:"entityId"`
	Fields         BookingFields `json:"fields"`
	Version        int64         `json:"version"`
}

// PushMetadata служебные поля запроса отправки черновика
type PushMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	DraftID   string    `json:"draftId"`
	Version   int64     `json:"version"`
}

// PushRequest представляет запрос отправки черновика на сервер
type PushRequest struct {
	Draft    Draft        `json:"draft"`
	Metadata PushMetadata `json:"metadata"`
}

// PushResponse представляет ответ сервера на отправку черновика.
// Сервер возвращает присвоенный удаленный идентификатор бронирования.
type PushResponse struct {
	BookingID string `json:"bookingId"`
}

// PullResponse представляет ответ сервера на запрос черновика.
// Draft == nil, если у сервера нет записи для entityId.
type PullResponse struct {
	Draft *Draft `json:"draft"`
}

// ErrorResponse представляет ошибку сервера
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
