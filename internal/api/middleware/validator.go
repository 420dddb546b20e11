package middleware

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/freed/internal/scheduling"
)

// RegisterValidators 注册 date / hhmm / tz 三个绑定校验规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	rules := map[string]validator.Func{
		"date": layoutRule(scheduling.DateLayout),
		"hhmm": layoutRule(scheduling.TimeLayout),
		"tz": func(fl validator.FieldLevel) bool {
			_, err := time.LoadLocation(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func layoutRule(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, err := time.Parse(layout, fl.Field().String())
		return err == nil
	}
}
