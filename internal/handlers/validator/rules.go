package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewProjectValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("project_name", nameValidator),
		},
		{
			Rule: registerFn("project_status", projectStatusValidator),
		},
	}
}

func NewInventoryValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("key", keyValidator),
		},
		{
			Rule: registerFn("mode", modeValidator),
		},
	}
}

func NewWaveValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("wave_status", waveStatusValidator),
		},
	}
}
