// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type appValidator struct {
	validate *validator.Validate
}

func (v appValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// NewValidator returns the request validator registered on the Echo instance.
func NewValidator() echo.Validator {
	return appValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// CodeValue is a one-time code that clients may send as a JSON string or number.
type CodeValue string

var errCodeType = errors.New("code must be a string or number")

func (v *CodeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = CodeValue(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errCodeType
	}
	*v = CodeValue(n.String())
	return nil
}

// normalizer is implemented by requests that clean their fields before validation.
type normalizer interface {
	normalize()
}

// bindRequest binds, normalizes and validates the request body into req.
func bindRequest(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	return c.Validate(req)
}
