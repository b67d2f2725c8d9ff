package contract

import "errors"

var (
	ErrModelInvoke         = errors.New("model invoke failed")
	ErrSchemaViolation     = errors.New("model response violates schema")
	ErrPromptMissing       = errors.New("required prompt is missing")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidMessage      = errors.New("message is empty")
	ErrInvalidPrincipal    = errors.New("principal is empty")
	ErrDuplicateCapability = errors.New("duplicate capability name")
	ErrCapabilityNotFound  = errors.New("capability not found")
)
