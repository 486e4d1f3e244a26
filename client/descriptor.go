package client

import (
	"fmt"
)

const (
	DefaultVersion = "1.0.0"
	DefaultRisk    = "medium"
)

// Descriptor is the registration metadata for one callable function.
// The registry key is FullName(): category + "." + id.
type Descriptor struct {
	ID       string
	Version  string // defaults to "1.0.0"
	Category string
	Risk     string // defaults to "medium"

	Entity    string
	Operation string
	Enabled   bool // set to true at registration; toggled via SetEnabled

	DisplayName  string
	Description  string
	InputSchema  string // JSON schema for the request payload, validated when non-empty
	OutputSchema string // JSON schema for the response payload, informational
	Tags         map[string]string
}

// applyDefaults fills version and risk when unset and enables the
// function. Called once at registration.
func (d *Descriptor) applyDefaults() {
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	if d.Risk == "" {
		d.Risk = DefaultRisk
	}
	d.Enabled = true
}

// Validate rejects descriptors missing any of the required fields.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("descriptor: id is required")
	}
	if d.Version == "" {
		return fmt.Errorf("descriptor: version is required")
	}
	if d.Category == "" {
		return fmt.Errorf("descriptor: category is required")
	}
	if d.Risk == "" {
		return fmt.Errorf("descriptor: risk is required")
	}
	return nil
}

// FullName reconstructs the dotted registry key.
func (d *Descriptor) FullName() string {
	return d.Category + "." + d.ID
}
