// Package schema holds the field contracts of each profile variant and the
// rules used to validate and normalise request bodies against them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
)

// Kind is the wire type a field must carry.
type Kind int

const (
	// KindString is a non-empty JSON string.
	KindString Kind = iota
	// KindNumber is numeric (JSON number or numeric string), stored as float64.
	KindNumber
	// KindDigits is numeric but stored as its text, so leading zeros survive.
	KindDigits
	// KindEnum is a string restricted to Field.Options.
	KindEnum
)

type Field struct {
	Name    string
	Kind    Kind
	Options []string
}

// Schema is the recognised, required field set of one variant.
type Schema struct {
	Variant models.Variant
	Fields  []Field
}

// CultureCategories is the fixed set accepted for a venue's cultureCategory.
var CultureCategories = []string{
	"african",
	"american",
	"australian",
	"chinese",
	"french",
	"fusion",
	"greek",
	"indian",
	"indonesian",
	"italian",
	"japanese",
	"korean",
	"lebanese",
	"malaysian",
	"mexican",
	"middle-eastern",
	"spanish",
	"thai",
	"turkish",
	"vietnamese",
}

var Member = Schema{
	Variant: models.VariantMember,
	Fields: []Field{
		{Name: "memberName", Kind: KindString},
		{Name: "mobileNumber", Kind: KindString},
	},
}

var Venue = Schema{
	Variant: models.VariantVenue,
	Fields: []Field{
		{Name: "venueName", Kind: KindString},
		{Name: "bankBSB", Kind: KindString},
		{Name: "bankName", Kind: KindString},
		{Name: "bankAccountNo", Kind: KindString},
		{Name: "phoneNumber", Kind: KindString},
		{Name: "address", Kind: KindString},
		{Name: "postalCode", Kind: KindDigits},
		{Name: "mapLong", Kind: KindNumber},
		{Name: "mapLat", Kind: KindNumber},
		{Name: "cultureCategory", Kind: KindEnum, Options: CultureCategories},
	},
}

// For returns the schema registered for v.
func For(v models.Variant) (Schema, error) {
	switch v {
	case models.VariantMember:
		return Member, nil
	case models.VariantVenue:
		return Venue, nil
	}
	return Schema{}, fmt.Errorf("schema: unknown variant %q", v)
}

var numericRe = regexp.MustCompile(`^[+-]?([0-9]*[.])?[0-9]+$`)

var (
	errNotString  = validation.NewError("validation_not_string", "must be a string")
	errNotNumeric = validation.NewError("validation_not_numeric", "must be numeric")
	errOutOfRange = validation.NewError("validation_out_of_range", "must be a finite number")
)

func isString(value interface{}) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(string); !ok {
		return errNotString
	}
	return nil
}

func isNumeric(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case json.Number:
		return parseFinite(string(v))
	case string:
		return parseFinite(v)
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int, int32, int64, uint, uint32, uint64:
		return nil
	}
	return errNotNumeric
}

// parseFinite accepts plain decimal text that fits in a float64.
func parseFinite(s string) error {
	if !numericRe.MatchString(s) {
		return errNotNumeric
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errOutOfRange
	}
	return finite(f)
}

func finite(f float64) error {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return errOutOfRange
	}
	return nil
}

func (f Field) rules() []validation.Rule {
	switch f.Kind {
	case KindNumber, KindDigits:
		return []validation.Rule{validation.NotNil, validation.By(isNumeric)}
	case KindEnum:
		opts := make([]interface{}, len(f.Options))
		for i, o := range f.Options {
			opts[i] = o
		}
		return []validation.Rule{validation.Required, validation.By(isString), validation.In(opts...)}
	default:
		return []validation.Rule{validation.Required, validation.By(isString)}
	}
}

// Validate checks every recognised field of the schema against input.
// Unrecognised keys are ignored. The result is empty when input is
// acceptable, and ordered like the schema otherwise.
func (s Schema) Validate(input map[string]any) []models.FieldError {
	if input == nil {
		input = map[string]any{}
	}

	keys := make([]*validation.KeyRules, 0, len(s.Fields))
	for _, f := range s.Fields {
		keys = append(keys, validation.Key(f.Name, f.rules()...))
	}

	err := validation.Validate(input, validation.Map(keys...).AllowExtraKeys())
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []models.FieldError{{Msg: err.Error(), Param: "body", Location: "body"}}
	}

	out := make([]models.FieldError, 0, len(errs))
	for _, f := range s.Fields {
		fe, ok := errs[f.Name]
		if !ok {
			continue
		}
		out = append(out, models.FieldError{
			Value:    input[f.Name],
			Msg:      fe.Error(),
			Param:    f.Name,
			Location: "body",
		})
	}
	return out
}

// Normalize returns the recognised fields of input converted to their stored
// types. Input must already have passed Validate.
func (s Schema) Normalize(input map[string]any) models.Attributes {
	out := make(models.Attributes, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := input[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case KindNumber:
			out[f.Name] = toFloat(v)
		case KindDigits:
			out[f.Name] = toDigits(v)
		default:
			out[f.Name] = v
		}
	}
	return out
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

func toDigits(v any) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}
