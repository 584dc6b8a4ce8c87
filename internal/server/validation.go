package server

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"github.com/smallbiznis/pxwallet/pkg/money"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

var customValidations = map[string]validator.Func{
	"pxid":  validatePublicID,
	"money": validateMoney,
}

// registerValidators adds the pxid and money tags to gin's binding validator.
// A failed registration is returned on every later call too.
func registerValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = fmt.Errorf("binding validator engine is %T, want *validator.Validate", binding.Validator.Engine())
			return
		}
		v.RegisterTagNameFunc(wireFieldName)
		v.RegisterCustomTypeFunc(moneyValue, money.Money{})
		validatorsErr = registerValidations(v, customValidations)
	})
	return validatorsErr
}

func registerValidations(v *validator.Validate, fns map[string]validator.Func) error {
	for tag, fn := range fns {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q validation: %w", tag, err)
		}
	}
	return nil
}

// wireFieldName reports fields by their json or form name.
func wireFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func moneyValue(field reflect.Value) interface{} {
	if m, ok := field.Interface().(money.Money); ok {
		return m.String()
	}
	return nil
}

func validatePublicID(fl validator.FieldLevel) bool {
	return walletdomain.IsPublicID(fl.Field().String())
}

func validateMoney(fl validator.FieldLevel) bool {
	m, err := money.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return m.IsPositive()
}
