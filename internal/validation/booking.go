package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/iudanet/draftsync/internal/models"
)

// Имена полей черновика бронирования (совпадают с JSON-тегами модели)
const (
	FieldCustomerName  = "customerName"
	FieldContactNumber = "contactNumber"
	FieldCountryCode   = "countryCode"
	FieldAddress1      = "address1"
	FieldAddress2      = "address2"
	FieldServiceType   = "serviceType"
	FieldScheduledTime = "scheduledTime"
	FieldDiscountCode  = "discountCode"
	FieldNotes         = "notes"
)

// Временное окно для запланированного времени услуги
const (
	// MinScheduleAhead минимум от текущего момента, раньше - ошибка
	MinScheduleAhead = 30 * time.Minute
	// MaxScheduleAhead максимум от текущего момента, позже - предупреждение
	MaxScheduleAhead = 30 * 24 * time.Hour
)

var (
	// customerNamePattern буквы, пробелы, дефисы, апострофы
	customerNamePattern = regexp.MustCompile(`^[\p{L} '\-]+$`)
	// contactNumberPattern 8-15 цифр
	contactNumberPattern = regexp.MustCompile(`^\d{8,15}$`)
	// countryCodePattern "+" и 1-4 цифры
	countryCodePattern = regexp.MustCompile(`^\+\d{1,4}$`)
	// nonDigits все, что не цифра (для sanitize телефона)
	nonDigits = regexp.MustCompile(`\D`)
)

// BookingValidator проверяет черновики бронирования по декларативной таблице.
type BookingValidator struct {
	now   func() time.Time
	rules Rules
}

// BookingOption настраивает BookingValidator.
type BookingOption func(*BookingValidator)

// WithNow подменяет источник времени (для тестов окна scheduledTime).
func WithNow(now func() time.Time) BookingOption {
	return func(v *BookingValidator) {
		v.now = now
	}
}

// NewBookingValidator создает валидатор с таблицей правил черновика.
func NewBookingValidator(opts ...BookingOption) *BookingValidator {
	v := &BookingValidator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}

	v.rules = Rules{
		{Field: FieldCustomerName, Label: "customer name", Required: true, MinLength: 2, MaxLength: 100, Pattern: customerNamePattern},
		{Field: FieldContactNumber, Label: "WhatsApp number", Required: true, Pattern: contactNumberPattern},
		{Field: FieldCountryCode, Label: "country dial code", Required: true, Pattern: countryCodePattern},
		{Field: FieldAddress1, Label: "address line 1", Required: true, MinLength: 5, MaxLength: 200},
		{Field: FieldAddress2, Label: "address line 2"},
		{Field: FieldServiceType, Label: "service type"},
		{Field: FieldScheduledTime, Label: "scheduled time", Custom: v.checkScheduleWindow},
		{Field: FieldDiscountCode, Label: "discount code"},
		{Field: FieldNotes, Label: "notes"},
	}

	return v
}

// Rules возвращает таблицу правил (для интроспекции и тестов).
func (v *BookingValidator) Rules() Rules {
	return v.rules
}

// Validate проверяет черновик. Ошибки блокируют синхронизацию,
// но никогда не блокируют локальное сохранение.
func (v *BookingValidator) Validate(d *models.Draft) Result {
	return v.rules.Validate(fieldValues(d))
}

// CompletionPercentage возвращает процент заполненности черновика (0..100).
func (v *BookingValidator) CompletionPercentage(d *models.Draft) float64 {
	return v.rules.Completion(fieldValues(d))
}

// checkScheduleWindow проверяет, что время услуги не раньше чем через
// MinScheduleAhead (ошибка) и не позже чем через MaxScheduleAhead
// (предупреждение).
func (v *BookingValidator) checkScheduleWindow(value string) ([]string, []string) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return []string{fmt.Sprintf("%s has invalid format", FieldScheduledTime)}, nil
	}

	now := v.now()
	switch {
	case t.Before(now.Add(MinScheduleAhead)):
		return []string{fmt.Sprintf("%s must be at least %s from now", FieldScheduledTime, MinScheduleAhead)}, nil
	case t.After(now.Add(MaxScheduleAhead)):
		return nil, []string{fmt.Sprintf("%s is more than %d days ahead", FieldScheduledTime, int(MaxScheduleAhead.Hours()/24))}
	default:
		return nil, nil
	}
}

// Sanitize возвращает очищенную копию черновика: строки обрезаются,
// из телефона убирается все, кроме цифр, discount code приводится
// к верхнему регистру. Идемпотентна: Sanitize(Sanitize(d)) == Sanitize(d).
func Sanitize(d *models.Draft) *models.Draft {
	c := d.Clone()
	f := &c.Fields

	f.CustomerName = strings.TrimSpace(f.CustomerName)
	f.ContactNumber = nonDigits.ReplaceAllString(strings.TrimSpace(f.ContactNumber), "")
	f.CountryCode = strings.TrimSpace(f.CountryCode)
	f.Address1 = strings.TrimSpace(f.Address1)
	f.Address2 = strings.TrimSpace(f.Address2)
	f.ServiceType = strings.TrimSpace(f.ServiceType)
	f.DiscountCode = strings.ToUpper(strings.TrimSpace(f.DiscountCode))
	f.Notes = strings.TrimSpace(f.Notes)

	return c
}

// fieldValues извлекает из черновика значения полей для таблицы правил.
func fieldValues(d *models.Draft) map[string]string {
	values := map[string]string{
		FieldCustomerName:  d.Fields.CustomerName,
		FieldContactNumber: d.Fields.ContactNumber,
		FieldCountryCode:   d.Fields.CountryCode,
		FieldAddress1:      d.Fields.Address1,
		FieldAddress2:      d.Fields.Address2,
		FieldServiceType:   d.Fields.ServiceType,
		FieldDiscountCode:  d.Fields.DiscountCode,
		FieldNotes:         d.Fields.Notes,
	}
	if d.Fields.ScheduledAt != nil {
		values[FieldScheduledTime] = d.Fields.ScheduledAt.Format(time.RFC3339)
	}
	return values
}
