package module

import "reflect"

// PortSet marks module-defined port bundles. Modules return their own
// concrete struct from Ports; consumers pull single interfaces out of it
type PortSet = any

// PortsOf extracts an interface T from a module's Ports bundle without the
// registry: either the bundle itself implements T, or one of its exported
// struct fields does
func PortsOf[T any](m Module) (T, bool) {
	var zero T

	p := m.Ports()
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}

	rv := reflect.ValueOf(p)
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := range rv.NumField() {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, ok := f.Interface().(T); ok {
			return v, true
		}
	}
	return zero, false
}

// MustPortsOf panics when the module does not expose T, naming the module
// so wiring mistakes are obvious at startup
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic("module: requested port not found on module " + m.Name())
	}
	return v
}
