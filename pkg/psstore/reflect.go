package psstore

import "reflect"

// assignInto assigns value into *out (out must be a non-nil pointer),
// mirroring encoding/gob's decode-into-pointer convention so Get's
// deserializer and its cache-hit path share one assignment rule.
func assignInto(out any, value any) bool {
	outVal := reflect.ValueOf(out)
	if outVal.Kind() != reflect.Ptr || outVal.IsNil() {
		return false
	}
	valVal := reflect.ValueOf(value)
	elem := outVal.Elem()
	if !valVal.IsValid() {
		elem.Set(reflect.Zero(elem.Type()))
		return true
	}
	if !valVal.Type().AssignableTo(elem.Type()) {
		return false
	}
	elem.Set(valVal)
	return true
}

// derefAny returns the value pointed to by out, for installing into the
// resolve cache after a successful deserialize-into-pointer.
func derefAny(out any) any {
	return reflect.ValueOf(out).Elem().Interface()
}
