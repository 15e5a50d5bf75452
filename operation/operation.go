// Package operation defines how annotation operations identify and
// describe themselves to the rest of the toolkit.
package operation

import "github.com/c360studio/semtext/ident"

// Description identifies one configured instance of an operation: a
// unique id, a human-readable name (typically the type name) and the
// configuration the instance was built with, kept for reproducibility
// and auditing. Descriptions are immutable once created.
type Description struct {
	UID    string         `json:"uid"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// NewDescription creates a description with a fresh unique id.
func NewDescription(name string, config map[string]any) Description {
	return Description{
		UID:    ident.New(),
		Name:   name,
		Config: config,
	}
}

// Operation is implemented by every annotation operation.
type Operation interface {
	// Description returns the description of this operation instance.
	Description() Description
}
