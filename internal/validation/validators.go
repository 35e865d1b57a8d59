// Package validation registers the shared request validator and the custom
// enum validators.
package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/daygraph/daygraph/internal/models"
)

// Validate is the shared validator instance.
var Validate *validator.Validate

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("node_type", validateNodeType); err != nil {
		panic(fmt.Sprintf("failed to register node_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("update_kind", validateUpdateKind); err != nil {
		panic(fmt.Sprintf("failed to register update_kind validator: %v", err))
	}
	if err := Validate.RegisterValidation("task_status", validateTaskStatus); err != nil {
		panic(fmt.Sprintf("failed to register task_status validator: %v", err))
	}
}

func validateNodeType(fl validator.FieldLevel) bool {
	return ValidNodeType(fl.Field().String())
}

// ValidNodeType reports whether value is a known node type.
func ValidNodeType(value string) bool {
	switch models.NodeType(value) {
	case models.NodeTypeTask, models.NodeTypeProject, models.NodeTypeIdea,
		models.NodeTypeGoal, models.NodeTypeThought, models.NodeTypeCategory:
		return true
	default:
		return false
	}
}

func validateUpdateKind(fl validator.FieldLevel) bool {
	switch models.UpdateKind(fl.Field().String()) {
	case models.UpdateKindNote, models.UpdateKindStatus, models.UpdateKindProgress:
		return true
	default:
		return false
	}
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	switch models.TaskStatus(fl.Field().String()) {
	case models.TaskStatusPending, models.TaskStatusInProgress,
		models.TaskStatusCompleted, models.TaskStatusDeferred:
		return true
	default:
		return false
	}
}
