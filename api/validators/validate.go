// Package validators decodes request bodies and query strings into tagged structs
// and reports failures as CodeValidation errors keyed by the wire field name.
package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(wireName)
	return v
}()

// wireName prefers the query tag, then the json tag, then the Go field name.
func wireName(f reflect.StructField) string {
	for _, key := range []string{"query", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// DecodeJSONBody strictly decodes one JSON object and validates it.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{"body": err.Error()})
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single object")
	}
	return Struct(dest)
}

// DecodeQuery fills the `query`-tagged fields of dest from the URL and validates it.
// Supported field kinds are string, int and time.Time (RFC3339).
func DecodeQuery(r *http.Request, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return pkgerrors.New(pkgerrors.CodeInternal, "query destination must be a struct pointer")
	}
	if err := fillQuery(r.URL.Query(), rv.Elem()); err != nil {
		return err
	}
	return Struct(dest)
}

func fillQuery(values url.Values, target reflect.Value) error {
	typ := target.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key, _, _ := strings.Cut(field.Tag.Get("query"), ",")
		if key == "" || key == "-" {
			continue
		}
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			continue
		}
		if err := setField(target.Field(i), raw); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid query parameter").
				WithDetails(map[string]string{key: err.Error()})
		}
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

func setField(v reflect.Value, raw string) error {
	switch {
	case v.Type() == timeType:
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return errors.New("must be an RFC3339 timestamp")
		}
		v.Set(reflect.ValueOf(parsed.UTC()))
	case v.Kind() == reflect.String:
		v.SetString(raw)
	case v.Kind() == reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("must be numeric")
		}
		v.SetInt(int64(n))
	default:
		return fmt.Errorf("unsupported field type %s", v.Type())
	}
	return nil
}

// Struct runs the tag rules on an already-populated value.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "uuid", "uuid4":
		return "must be a uuid"
	case "latitude", "longitude":
		return "must be a valid " + fe.Tag()
	}
	return "is invalid"
}
