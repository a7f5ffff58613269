// Package wire defines how executors, return values and errors cross the boundary
// between the scheduler and a worker process.
package wire

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
)

var registry = xsync.NewMapOf[string, reflect.Type]()

// Register makes the concrete type of prototype known to both sides of the boundary.
// Registering the same type twice is harmless.
func Register(prototype any) {
	typ := reflect.TypeOf(prototype)
	if typ == nil {
		return
	}

	registry.Store(TypeName(typ), typ)
}

// Registered reports whether the concrete type of val was registered.
func Registered(val any) bool {
	typ := reflect.TypeOf(val)
	if typ == nil {
		return false
	}

	_, ok := registry.Load(TypeName(typ))

	return ok
}

// TypeName returns the fully qualified name used to identify typ on the wire.
func TypeName(typ reflect.Type) string {
	if typ.Kind() == reflect.Pointer {
		return "*" + TypeName(typ.Elem())
	}

	if typ.PkgPath() == "" {
		return typ.String()
	}

	return typ.PkgPath() + "." + typ.Name()
}

func lookup(name string) (reflect.Type, bool) {
	return registry.Load(name)
}
