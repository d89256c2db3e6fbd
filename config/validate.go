package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate 先做结构体标签校验，再做跨字段/领域校验。
func Validate(cfg AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return describe(err)
	}
	if err := cfg.Seed.Validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if err := cfg.CalibratorConfig().Validate(); err != nil {
		return fmt.Errorf("calibrator: %w", err)
	}
	if cfg.Log.ErrorFile == "" && len(cfg.Log.Outputs) == 0 {
		return errors.New("log.outputs must not be empty")
	}
	if slices.Contains(cfg.Log.Outputs, "file") && cfg.Log.OutputFile == "" {
		return errors.New("log.outputFile is required when log.outputs contains file")
	}
	return nil
}

func describe(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, message(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func message(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "ltefield", "gtefield":
		return fmt.Sprintf("%s violates %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
