package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		structCheck = validator.New(validator.WithRequiredStructEnabled())
		structCheck.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return structCheck
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return describeValidation(err)
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRunner() error {
	// The budget is checked between items, so a run can overshoot it by one
	// render before the lock is released.
	longest := c.Runner.TimeBudgetSeconds + c.Render.TimeoutSeconds
	if c.Runner.LockTTLSeconds <= longest {
		return fmt.Errorf("runner.lock_ttl_seconds (%d) must exceed runner.time_budget_seconds plus render.timeout_seconds (%d)",
			c.Runner.LockTTLSeconds, longest)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Backend != StorageS3 {
		if strings.TrimSpace(c.Paths.PreviewDir) == "" {
			return errors.New("paths.preview_dir must be set for local storage")
		}
		return nil
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when storage.backend is s3")
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
		return errors.New("storage.access_key_id and storage.secret_access_key must be set when storage.backend is s3")
	}
	return nil
}

func (c *Config) validateRender() error {
	for _, size := range c.Render.Sizes {
		var width, height int
		if _, err := fmt.Sscanf(size, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
			return fmt.Errorf("render.sizes: %q is not WIDTHxHEIGHT", size)
		}
	}
	return nil
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	first := fieldErrs[0]
	field := strings.TrimPrefix(first.Namespace(), "Config.")
	switch first.Tag() {
	case "required":
		return fmt.Errorf("%s must be set", field)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", field, first.Param(), fmt.Sprint(first.Value()))
	case "url":
		return fmt.Errorf("%s must be an absolute URL, got %q", field, fmt.Sprint(first.Value()))
	default:
		return fmt.Errorf("%s failed %s=%s validation (value %v)", field, first.Tag(), first.Param(), first.Value())
	}
}
