// Package factory registers storage driver constructors by name so that
// drivers can be selected from configuration. Driver packages register
// themselves from init and are linked in with blank imports.
package factory

import (
	"fmt"

	"github.com/anchorage/registry/storagedriver"
)

// StorageDriverFactory constructs a driver from configuration parameters.
type StorageDriverFactory interface {
	Create(parameters map[string]interface{}) (storagedriver.StorageDriver, error)
}

var driverFactories = make(map[string]StorageDriverFactory)

// Register makes a driver available under the given name. Registering the
// same name twice panics, as does a nil factory.
func Register(name string, factory StorageDriverFactory) {
	if factory == nil {
		panic("storagedriver factory must not be nil")
	}
	if _, registered := driverFactories[name]; registered {
		panic(fmt.Sprintf("storagedriver factory %q already registered", name))
	}
	driverFactories[name] = factory
}

// Create builds the named driver with the given parameters.
func Create(name string, parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	factory, ok := driverFactories[name]
	if !ok {
		return nil, InvalidStorageDriverError{Name: name}
	}
	return factory.Create(parameters)
}

// InvalidStorageDriverError is returned when no driver is registered under
// the requested name.
type InvalidStorageDriverError struct {
	Name string
}

func (err InvalidStorageDriverError) Error() string {
	return fmt.Sprintf("storage driver not registered: %s", err.Name)
}
