package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by a command's aggregate options.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section for help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills derived and defaulted fields after flags and config are applied.
	Complete() error

	// Validate returns an aggregate of every invalid field.
	Validate() error
}
