package config

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validator implemented by every section config
type Validator interface {
	Validate() error
}

// Section a named Validator, the name prefixes its error
type Section struct {
	Name string
	V    Validator
}

// ValidateAll stops at the first invalid section. Field-level failures are
// attached as data "fields" when the section validates with ozzo.
func ValidateAll(sections ...Section) error {
	for _, s := range sections {
		err := s.V.Validate()
		if err == nil {
			continue
		}
		le := ErrConfigInvalid.Wrap(fmt.Errorf("%s: %w", s.Name, err)).WithData("section", s.Name)
		if fields := fieldErrors(err); len(fields) > 0 {
			le = le.WithData("fields", fields)
		}
		return le
	}
	return nil
}

// fieldErrors flattens ozzo errors found anywhere in err's chain
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for field, fe := range verrs {
		if fe != nil {
			fields[field] = fe.Error()
		}
	}
	return fields
}
