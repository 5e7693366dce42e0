package xpipe

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
)

// newValidator 创建负载校验器，字段名取 json tag。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validatePayload 校验请求负载，失败转换为带逐字段错误表的校验类失败。
func (p *Pipeline) validatePayload(payload any) error {
	if payload == nil {
		return nil
	}
	err := p.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError：负载不是结构体，属于编程错误
		return xfault.Wrap(xfault.KindUnknown, "payload is not validatable", err)
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], ruleMessage(fe))
	}
	return xfault.Validation("request validation failed", fields)
}

// ruleMessage 把校验规则渲染为面向客户端的消息。
func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	case "email":
		return "must be a valid email address"
	default:
		return "failed validation rule: " + fe.Tag()
	}
}
