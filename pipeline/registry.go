package pipeline

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// OperationFactory builds a pipeline operation from the params node of
// a definition step. A nil params node means the step carried none.
type OperationFactory func(params *yaml.Node) (Processor, error)

var operationFactories = make(map[string]OperationFactory)

// RegisterOperation makes an operation type available to pipeline
// definitions under the given name. Typically called from init() of
// the package implementing the operation.
func RegisterOperation(name string, factory OperationFactory) error {
	if name == "" {
		return fmt.Errorf("operation name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("operation %s: factory must not be nil", name)
	}
	if _, exists := operationFactories[name]; exists {
		return fmt.Errorf("operation %s already registered", name)
	}
	operationFactories[name] = factory
	return nil
}

// RegisteredOperations returns the sorted names of all registered
// operation types.
func RegisteredOperations() []string {
	names := make([]string, 0, len(operationFactories))
	for name := range operationFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
