package storage

import (
	"encoding/json"
	"reflect"
	"regexp"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CheckFieldName restricts indexed attribute names to identifiers.
func CheckFieldName(field string) error {
	if !fieldNamePattern.MatchString(field) {
		return errors.NewInvalidRequestError("invalid field name %q", field)
	}
	return nil
}

// CheckConditions rejects empty condition lists and blank fields.
func CheckConditions(conds []Condition) error {
	if len(conds) == 0 {
		return errors.NewInvalidRequestError("index query needs at least one condition")
	}
	for _, c := range conds {
		if err := CheckFieldName(c.Field); err != nil {
			return err
		}
	}
	return nil
}

// MatchesConditions reports whether every condition equals the atom's
// attribute of the same name.
func MatchesConditions(a *atom.Atom, conds []Condition) bool {
	for _, c := range conds {
		v, ok := a.Attributes[c.Field]
		if !ok || !ValuesEqual(v, c.Value) {
			return false
		}
	}
	return true
}

// ValuesEqual compares attribute values the way they compare after a JSON
// round trip, so an int stored in memory equals the float64 a remote
// caller sends.
func ValuesEqual(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
