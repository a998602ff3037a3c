package cli

import (
	"fmt"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/project"
	"github.com/spf13/cobra"
)

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

// OptionalBoolFlag reads name, treating a flag the command does not define
// as false.
func OptionalBoolFlag(cmd *cobra.Command, name string) (bool, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return false, nil
	}
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

// ParseProjectOptions collects the global switches and --fallback.
func ParseProjectOptions(cmd *cobra.Command) (project.Options, error) {
	var opts project.Options
	var err error
	if opts.CacheURL, err = OptionalStringFlag(cmd, "cache-url"); err != nil {
		return opts, err
	}
	if opts.ForceDownload, err = OptionalBoolFlag(cmd, "force-download"); err != nil {
		return opts, err
	}
	if opts.NoLeanUpgrade, err = OptionalBoolFlag(cmd, "no-lean-upgrade"); err != nil {
		return opts, err
	}
	if opts.Fallback, err = OptionalBoolFlag(cmd, "fallback"); err != nil {
		return opts, err
	}
	return opts, nil
}
