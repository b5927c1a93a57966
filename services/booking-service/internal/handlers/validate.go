package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := model.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		_, err := model.ParseFrequency(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		_, err := model.ParseStatus(fl.Field().String())
		return err == nil
	})
	return v
}

// validationDetails maps each failing field (dotted json path) to the tag it failed.
func validationDetails(err error) map[string]string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, e := range errs {
		_, path, _ := strings.Cut(e.Namespace(), ".")
		details[path] = e.Tag()
	}
	return details
}
