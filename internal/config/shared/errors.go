package shared

import (
	"fmt"
	"strings"
)

type ConfigError struct {
	Component string
	Field     string
	Value     interface{}
	Message   string
}

func NewConfigError(component, field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Component: component,
		Field:     field,
		Value:     value,
		Message:   message,
	}
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s.%s: %s (got: %v)", e.Component, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Field, e.Message)
}

// ConfigErrors collects every problem found in one validation pass.
type ConfigErrors []*ConfigError

func (e ConfigErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(messages, "; "))
}

func (e ConfigErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
