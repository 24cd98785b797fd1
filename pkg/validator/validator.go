package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`)
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

// FieldError reports the first rule a field failed
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// ValidateStruct validates a struct based on validate tags.
//
// Supported rules: required, omitempty, email, phone, min=N, max=N and
// oneof=a b c. Lengths count runes for strings and elements for slices.
// Pointer fields are dereferenced; a nil pointer only fails "required".
// Messages use the json name of the field when one is set.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		tag := field.Tag.Get("validate")

		if tag == "" {
			continue
		}

		name := fieldName(field)
		rules := strings.Split(tag, ",")

		if value.Kind() == reflect.Ptr {
			if value.IsNil() {
				if contains(rules, "required") {
					return &FieldError{Field: name, Message: fmt.Sprintf("%s is required", name)}
				}
				continue
			}
			value = value.Elem()
		}

		if contains(rules, "omitempty") && isZero(value) {
			continue
		}

		for _, rule := range rules {
			if err := validateField(name, value, rule); err != nil {
				return &FieldError{Field: name, Message: err.Error()}
			}
		}
	}

	return nil
}

func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// validateField validates a single field based on a rule
func validateField(fieldName string, value reflect.Value, rule string) error {
	switch rule {
	case "required":
		if isZero(value) {
			return fmt.Errorf("%s is required", fieldName)
		}
	case "omitempty":
	case "email":
		if value.Kind() == reflect.String {
			if err := ValidateEmail(value.String()); err != nil {
				return fmt.Errorf("%s must be a valid email", fieldName)
			}
		}
	case "phone":
		if value.Kind() == reflect.String {
			if err := ValidatePhone(value.String()); err != nil {
				return fmt.Errorf("%s must be a valid phone number", fieldName)
			}
		}
	default:
		key, arg, _ := strings.Cut(rule, "=")
		switch key {
		case "min":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid rule %q on %s", rule, fieldName)
			}
			if l, ok := length(value); ok && l < n {
				if value.Kind() == reflect.String {
					return fmt.Errorf("%s must be at least %d characters", fieldName, n)
				}
				return fmt.Errorf("%s must have at least %d entries", fieldName, n)
			}
		case "max":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid rule %q on %s", rule, fieldName)
			}
			if l, ok := length(value); ok && l > n {
				if value.Kind() == reflect.String {
					return fmt.Errorf("%s must be at most %d characters", fieldName, n)
				}
				return fmt.Errorf("%s must have at most %d entries", fieldName, n)
			}
		case "oneof":
			options := strings.Fields(arg)
			if value.Kind() == reflect.String && !contains(options, value.String()) {
				return fmt.Errorf("%s must be one of: %s", fieldName, strings.Join(options, ", "))
			}
		}
	}
	return nil
}

func length(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.String:
		return utf8.RuneCountInString(v.String()), true
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), true
	}
	return 0, false
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

// isZero checks if a value is zero/empty
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Struct:
		return v.IsZero()
	default:
		return false
	}
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidatePhone accepts digits with an optional leading + and inner spaces or dashes
func ValidatePhone(phone string) error {
	if phone == "" {
		return errors.New("phone is required")
	}
	if !phoneRegex.MatchString(phone) {
		return errors.New("invalid phone format")
	}
	return nil
}

// ValidatePassword validates a password
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password is required")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// ValidateRequired validates that a field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// SanitizeString sanitizes a string by removing potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")
	// Trim whitespace
	s = strings.TrimSpace(s)
	return s
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	email = SanitizeString(email)
	email = strings.ToLower(email)
	return email
}

// SanitizePhone trims a phone number and drops inner spaces and dashes
func SanitizePhone(phone string) string {
	phone = SanitizeString(phone)
	return strings.NewReplacer(" ", "", "-", "").Replace(phone)
}

// SanitizeTags trims tags, drops empty and duplicate ones and keeps order.
// A single comma-separated entry is split.
func SanitizeTags(raw []string) []string {
	var parts []string
	for _, r := range raw {
		parts = append(parts, strings.Split(r, ",")...)
	}
	seen := make(map[string]struct{}, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := SanitizeString(p)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
