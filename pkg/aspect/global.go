package aspect

import (
	"sync"

	"github.com/turtacn/appkit/pkg/errors"
)

var global struct {
	sync.RWMutex
	m *Map
}

// CreateGlobal creates the process-wide Map. Creating it twice without
// DestroyGlobal in between is a logic error.
func CreateGlobal() *Map {
	global.Lock()
	defer global.Unlock()
	if global.m != nil {
		panic(errors.Logic(errors.ErrCodeGlobalContext, "CreateGlobal", "global aspect map already exists"))
	}
	global.m = New()
	return global.m
}

// Global returns the process-wide Map. It panics outside the
// CreateGlobal/DestroyGlobal window.
func Global() *Map {
	global.RLock()
	defer global.RUnlock()
	if global.m == nil {
		panic(errors.Logic(errors.ErrCodeGlobalContext, "Global", "global aspect map does not exist"))
	}
	return global.m
}

// HasGlobal reports whether the process-wide Map exists.
func HasGlobal() bool {
	global.RLock()
	defer global.RUnlock()
	return global.m != nil
}

// DestroyGlobal clears and drops the process-wide Map.
func DestroyGlobal() {
	global.Lock()
	defer global.Unlock()
	if global.m == nil {
		panic(errors.Logic(errors.ErrCodeGlobalContext, "DestroyGlobal", "global aspect map does not exist"))
	}
	global.m.Clear()
	global.m = nil
}

// Personal.AI order the ending
