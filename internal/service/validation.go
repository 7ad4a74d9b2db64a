package service

import (
	"fmt"
	"strings"
	"unicode"

	"whisp/pkg/password"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nospace", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsSpace) < 0
	})
	return v
}

// accountInput 注册、改名、改密码、重发验证邮件共用的校验规则
type accountInput struct {
	Username string `validate:"required,min=3,max=32,excludesall=@,nospace"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// checkAccount 校验 fields 指定的字段，不传则校验全部
func checkAccount(input accountInput, fields ...string) error {
	var err error
	if len(fields) == 0 {
		err = validate.Struct(input)
	} else {
		err = validate.StructPartial(input, fields...)
	}
	if err != nil {
		return validationError(err)
	}
	if input.Password != "" {
		if err := password.CheckLength(input.Password); err != nil {
			return validation("password cannot exceed %d bytes", password.MaxBytes)
		}
	}
	return nil
}

// checkText 去除首尾空白后校验长度（按字符计），max <= 0 表示不限长度
func checkText(text string, max int, field string) (string, error) {
	text = strings.TrimSpace(text)
	if err := validate.Var(text, "required"); err != nil {
		return "", validation("%s cannot be empty", field)
	}
	if max > 0 {
		if err := validate.Var(text, fmt.Sprintf("max=%d", max)); err != nil {
			return "", validation("%s cannot exceed %d characters", field, max)
		}
	}
	return text, nil
}

// checkMaxLength 可为空的文本只校验上限
func checkMaxLength(text string, max int, field string) error {
	if err := validate.Var(text, fmt.Sprintf("max=%d", max)); err != nil {
		return validation("%s cannot exceed %d characters", field, max)
	}
	return nil
}

// validationError 将 validator 的首个字段错误转换为业务校验错误
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "validate input")
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "excludesall" || fe.Tag() == "nospace" {
			return validation("username cannot contain spaces or '@'")
		}
		return validation("username must be 3 to 32 characters")
	case "Email":
		return validation("invalid email address")
	case "Password":
		return validation("password must be at least 6 characters")
	}
	return validation("invalid %s", strings.ToLower(fe.Field()))
}
