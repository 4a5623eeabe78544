package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/classifier"
)

var (
	projectNameRegex = regexp.MustCompile(`^[a-zA-Z0-9+\-_. ]+$`)
	keyRegex         = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._:/-]*[a-zA-Z0-9])?$`)
)

func nameValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return projectNameRegex.MatchString(val)
}

func keyValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return keyRegex.MatchString(val)
}

func modeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := classifier.ParseMode(val)
	return err == nil
}

func projectStatusValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(v1alpha1.ProjectStatus)
	if !ok {
		return false
	}
	return v1alpha1.StringToProjectStatus(string(val)) == val
}

func waveStatusValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(v1alpha1.WaveStatus)
	if !ok {
		return false
	}
	return v1alpha1.StringToWaveStatus(string(val)) == val
}
