package validation

import (
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ruleSpec YAML-представление одного правила.
type ruleSpec struct {
	Field     string `yaml:"field"`
	Label     string `yaml:"label"`
	Pattern   string `yaml:"pattern"`
	Custom    string `yaml:"custom"` // Custom имя предиката из реестра
	MinLength int    `yaml:"minLength"`
	MaxLength int    `yaml:"maxLength"`
	Required  bool   `yaml:"required"`
}

// LoadRules читает таблицу правил из YAML. Паттерны компилируются,
// пользовательские предикаты подставляются из реестра predicates по имени.
// Правила остаются данными: новый тип записи - это новый YAML-файл,
// а не новый код.
func LoadRules(r io.Reader, predicates map[string]Predicate) (Rules, error) {
	var specs []ruleSpec
	if err := yaml.NewDecoder(r).Decode(&specs); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	rules := make(Rules, 0, len(specs))
	for _, spec := range specs {
		if spec.Field == "" {
			return nil, fmt.Errorf("rule without field name")
		}

		rule := FieldRule{
			Field:     spec.Field,
			Label:     spec.Label,
			Required:  spec.Required,
			MinLength: spec.MinLength,
			MaxLength: spec.MaxLength,
		}

		if spec.Pattern != "" {
			pattern, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern for field %q: %w", spec.Field, err)
			}
			rule.Pattern = pattern
		}

		if spec.Custom != "" {
			predicate, ok := predicates[spec.Custom]
			if !ok {
				return nil, fmt.Errorf("unknown custom predicate %q for field %q", spec.Custom, spec.Field)
			}
			rule.Custom = predicate
		}

		rules = append(rules, rule)
	}

	return rules, nil
}
