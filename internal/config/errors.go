package config

import (
	"fmt"
	"strings"
)

// ConfigurationError describes one invalid configuration field.
type ConfigurationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ce.Field, ce.Message)
}

// ConfigurationErrorCollection holds multiple configuration errors
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// Error implements the error interface for the collection
func (cec ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}

	if len(cec.Errors) == 1 {
		return "invalid configuration: " + cec.Errors[0].Error()
	}

	messages := make([]string, 0, len(cec.Errors))
	for _, err := range cec.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("%d configuration errors: %s", len(cec.Errors), strings.Join(messages, "; "))
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Add adds a new error to the collection
func (cec *ConfigurationErrorCollection) Add(field, message string) {
	cec.Errors = append(cec.Errors, ConfigurationError{Field: field, Message: message})
}

// Fields returns the names of the invalid fields.
func (cec *ConfigurationErrorCollection) Fields() []string {
	fields := make([]string, 0, len(cec.Errors))
	for _, err := range cec.Errors {
		fields = append(fields, err.Field)
	}
	return fields
}
