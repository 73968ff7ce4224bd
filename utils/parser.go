package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	_ = validate.RegisterValidation("username", validateUsernameTag)
	_ = validate.RegisterValidation("strkey", validateStrkeyTag)
}

// ValidateStruct checks v against its validate tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ParseConfig parses and validates a Config from JSON. Fields missing from
// data keep their defaults.
func ParseConfig(data []byte) (*types.Config, error) {
	config := types.DefaultConfig()

	if err := json.Unmarshal(data, config); err != nil {
		return nil, &types.Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse config: %v", err),
		}
	}

	if err := validate.Struct(config); err != nil {
		return nil, &types.Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}

	return config, nil
}

// SerializeReceipt converts a Receipt to JSON
func SerializeReceipt(receipt *types.Receipt) ([]byte, error) {
	return json.Marshal(receipt)
}

// NormalizeJSON formats JSON with consistent indentation
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// CompactJSON removes whitespace from JSON
func CompactJSON(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	if err := json.Compact(&buffer, data); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Custom validator functions
func validateUsernameTag(fl validator.FieldLevel) bool {
	return IsValidUsername(fl.Field().String())
}

func validateStrkeyTag(fl validator.FieldLevel) bool {
	return scval.ValidStrkey(fl.Field().String())
}
