package snapshot

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/planbridge/pkg/errors"
)

// wireSnapshot is the document as read from disk, before timestamps are
// parsed and before a missing data object can be told apart from an empty one.
type wireSnapshot struct {
	Version   string `json:"version" validate:"required,compatible"`
	Timestamp string `json:"timestamp" validate:"required,timestamp"`
	Data      *Data  `json:"data" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate

	compatible = mustConstraint("^" + FormatVersion)
)

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

func schemaValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.RFC3339Nano, fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("compatible", func(fl validator.FieldLevel) bool {
			ver, err := semver.NewVersion(fl.Field().String())
			return err == nil && compatible.Check(ver)
		})
		validate = v
	})
	return validate
}

// ValidateExport parses raw against the snapshot schema. It fails with an
// [errors.ErrCodeSchema] error whose details list every violation, and never
// returns a partial snapshot.
func ValidateExport(raw []byte) (*Snapshot, error) {
	var wire wireSnapshot
	var details []string

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !stderrors.As(err, &typeErr) {
			return nil, errors.Wrap(errors.ErrCodeSchema, err, "snapshot is not valid JSON")
		}
		details = append(details, typeMessage(typeErr))
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		details = append(details, "trailing data after snapshot document")
	}

	details = append(details, fieldMessages(schemaValidator().Struct(wire))...)
	if len(details) > 0 {
		return nil, schemaError(details)
	}

	ts, _ := time.Parse(time.RFC3339Nano, wire.Timestamp)
	return &Snapshot{
		Version:   wire.Version,
		Timestamp: ts,
		Data:      *wire.Data,
	}, nil
}

func schemaError(details []string) *errors.Error {
	return errors.New(errors.ErrCodeSchema, "snapshot failed schema validation: %d problem(s)", len(details)).
		WithDetails(details...)
}

// checkSchema validates an in-memory snapshot against the same struct rules.
func checkSchema(s *Snapshot) error {
	if s == nil {
		return schemaError([]string{"snapshot: is required"})
	}
	if details := fieldMessages(schemaValidator().Struct(s)); len(details) > 0 {
		return schemaError(details)
	}
	return nil
}

func typeMessage(e *json.UnmarshalTypeError) string {
	field := e.Field
	if field == "" {
		field = "snapshot"
	}
	return fmt.Sprintf("%s: expected %s, got %s", field, jsonType(e.Type), e.Value)
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "number"
	case reflect.Slice:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return t.String()
	}
}

func fieldMessages(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldPath(fe.Namespace())+": "+fieldMessage(fe))
	}
	return out
}

// fieldPath drops the Go type name validator puts in front of the namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "timestamp":
		return fmt.Sprintf("must be an RFC 3339 timestamp, got %q", fe.Value())
	case "compatible":
		return fmt.Sprintf("version %q is not compatible with format %s", fe.Value(), FormatVersion)
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
