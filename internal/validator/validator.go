// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"splitledger/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("split_policy", validateSplitPolicy)
		_ = v.RegisterValidation("frequency", validateFrequency)
	}
}

func validateSplitPolicy(fl validator.FieldLevel) bool {
	switch models.SplitPolicy(fl.Field().String()) {
	case models.SplitPolicyEqual, models.SplitPolicyPercentage, models.SplitPolicyDirect, models.SplitPolicyParentChild:
		return true
	}
	return false
}

func validateFrequency(fl validator.FieldLevel) bool {
	switch models.Frequency(fl.Field().String()) {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
		return true
	}
	return false
}
