package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/mcncl/json2csv/internal/errors" // Custom errors package
	"github.com/mcncl/json2csv/internal/models"
)

// api decodes numbers as json.Number so integers and floats keep their source text.
var api = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// number matches the json.Number-like values produced by the decoder.
type number interface {
	String() string
	Float64() (float64, error)
	Int64() (int64, error)
}

// ParseValue decodes one complete JSON value into model types
func ParseValue(raw []byte) (models.JSONValue, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.NewParsingError("value is empty", errors.ErrEmptyInput)
	}

	var root interface{}
	if err := api.Unmarshal(raw, &root); err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to decode JSON: %v", err), errors.ErrInvalidJSON)
	}

	return normalizeJSONValue(root), nil
}

// ParseRecord decodes one value and requires it to be an object
func ParseRecord(raw []byte) (models.JSONObject, error) {
	value, err := ParseValue(raw)
	if err != nil {
		return nil, err
	}

	obj, ok := value.(models.JSONObject)
	if !ok {
		return nil, errors.NewParsingError(fmt.Sprintf("top-level value is %s", kindOf(value)), errors.ErrNotObject)
	}
	return obj, nil
}

// normalizeJSONValue converts raw decoded types into our model types
func normalizeJSONValue(val interface{}) models.JSONValue {
	switch v := val.(type) {
	case map[string]interface{}:
		obj := make(models.JSONObject, len(v))
		for key, value := range v {
			obj[validUTF8(key)] = normalizeJSONValue(value)
		}
		return obj
	case []interface{}:
		arr := make(models.JSONArray, len(v))
		for i, value := range v {
			arr[i] = normalizeJSONValue(value)
		}
		return arr
	case string:
		return validUTF8(v)
	case json.Number:
		return v
	case number:
		return json.Number(v.String())
	default:
		return v // bool, nil
	}
}

// validUTF8 replaces each run of invalid UTF-8 bytes with U+FFFD.
// The decoder copies string bytes through unchecked.
func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

func kindOf(v models.JSONValue) string {
	switch v.(type) {
	case nil:
		return "null"
	case models.JSONArray:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
