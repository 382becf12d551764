// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	// DECIMAL(5,2) magnitude bound.
	maxMarks = decimal.RequireFromString("999.99")
	scoreMax = decimal.NewFromInt(1)

	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the decimal rules registered:
//
//	marks  -999.99 <= v <= 999.99 after rounding to two places
//	score  0 <= v <= 1
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("marks", func(fl validator.FieldLevel) bool {
			d, ok := decimalField(fl)
			if !ok {
				return false
			}
			// Negative marking is allowed.
			return d.Round(2).Abs().LessThanOrEqual(maxMarks)
		})
		_ = v.RegisterValidation("score", func(fl validator.FieldLevel) bool {
			d, ok := decimalField(fl)
			if !ok {
				return false
			}
			return !d.IsNegative() && d.LessThanOrEqual(scoreMax)
		})
		validate = v
	})
	return validate
}

// decimalField recovers the decimal behind a field. The custom type func
// above turns decimals into strings, so both shapes are accepted.
func decimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	switch f := fl.Field().Interface().(type) {
	case decimal.Decimal:
		return f, true
	case string:
		d, err := decimal.NewFromString(f)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// ValidateStruct runs the shared validator against s.
func ValidateStruct(s any) error {
	return Validator().Struct(s)
}
