package authcore

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

type validator struct {
	fields []FieldError
}

func (v *validator) add(code, path, msg string) {
	v.fields = append(v.fields, FieldError{Code: code, Path: path, Message: msg})
}

func (v *validator) email(path, value string) {
	if value == "" {
		v.add("required", path, "email is required")
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		v.add("invalid_string", path, "email is invalid")
	}
}

func (v *validator) password(path, value string) {
	switch {
	case utf8.RuneCountInString(value) < minPasswordLength:
		v.add("too_small", path, "password must contain at least 6 characters")
	case len(value) > maxPasswordBytes:
		v.add("too_big", path, "password must be at most 72 bytes")
	}
}

func (v *validator) required(path, value string) {
	if strings.TrimSpace(value) == "" {
		v.add("required", path, path+" is required")
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return Unprocessable("", v.fields...)
}
