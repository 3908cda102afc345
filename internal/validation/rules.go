// Package validation реализует декларативную проверку записей перед
// синхронизацией. Правила - данные, а не код: новая проверяемая запись
// добавляет строки в таблицу, а не новые ветвления.
package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Predicate пользовательская проверка значения поля.
// Возвращает списки ошибок и предупреждений.
type Predicate func(value string) (errs []string, warns []string)

// FieldRule описывает проверки одного поля.
type FieldRule struct {
	Custom    Predicate      `yaml:"-"`
	Pattern   *regexp.Regexp `yaml:"-"`
	Field     string         `yaml:"field"`
	Label     string         `yaml:"label"`     // Label человекочитаемое имя для сообщений
	MinLength int            `yaml:"minLength"` // MinLength минимальная длина в рунах (0 = не проверять)
	MaxLength int            `yaml:"maxLength"` // MaxLength максимальная длина в рунах (0 = не проверять)
	Required  bool           `yaml:"required"`
}

// Rules упорядоченная таблица правил.
type Rules []FieldRule

// Result результат проверки записи.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	IsValid  bool     `json:"isValid"`
}

// Validate применяет таблицу правил к значениям полей.
// Ошибки блокируют синхронизацию, предупреждения - нет.
// Необязательные пустые поля не проверяются на длину и формат.
func (r Rules) Validate(values map[string]string) Result {
	result := Result{Errors: []string{}, Warnings: []string{}}

	for _, rule := range r {
		value := values[rule.Field]

		if value == "" {
			if rule.Required {
				result.Errors = append(result.Errors, fmt.Sprintf("%s (%s) is required", rule.Field, rule.label()))
			}
			continue
		}

		length := utf8.RuneCountInString(value)
		if rule.MinLength > 0 && length < rule.MinLength {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s must be at least %d characters long", rule.Field, rule.MinLength))
		}
		if rule.MaxLength > 0 && length > rule.MaxLength {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s must not exceed %d characters", rule.Field, rule.MaxLength))
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s has invalid format", rule.Field))
		}
		if rule.Custom != nil {
			errs, warns := rule.Custom(value)
			result.Errors = append(result.Errors, errs...)
			result.Warnings = append(result.Warnings, warns...)
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// Completion вычисляет процент заполненности записи (0..100).
// Обязательные поля весят 0.7 от итога, необязательные - 0.3;
// внутри корзины счет filled/total.
func (r Rules) Completion(values map[string]string) float64 {
	var reqTotal, reqFilled, optTotal, optFilled int

	for _, rule := range r {
		filled := values[rule.Field] != ""
		if rule.Required {
			reqTotal++
			if filled {
				reqFilled++
			}
		} else {
			optTotal++
			if filled {
				optFilled++
			}
		}
	}

	var score float64
	switch {
	case reqTotal == 0:
		// Нет обязательных полей - весь вес на optional
		if optTotal > 0 {
			score = float64(optFilled) / float64(optTotal)
		}
	case optTotal == 0:
		score = float64(reqFilled) / float64(reqTotal)
	default:
		score = 0.7*float64(reqFilled)/float64(reqTotal) + 0.3*float64(optFilled)/float64(optTotal)
	}

	return score * 100
}

func (fr FieldRule) label() string {
	if fr.Label != "" {
		return fr.Label
	}
	return fr.Field
}
