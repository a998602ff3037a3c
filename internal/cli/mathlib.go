package cli

import (
	"log/slog"

	"github.com/leanprover-community/mathlib-tools/internal/project"
	"github.com/spf13/cobra"
)

func RunPR(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	return p.PR(commandContext(cmd), args[0], force)
}

func RunRebase(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	return p.Rebase(commandContext(cmd), force)
}

func RunGlobalInstall(cmd *cobra.Command, args []string) error {
	env, opts, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	p, err := project.UserWide(commandContext(cmd), env, opts)
	if err != nil {
		return err
	}
	if p.HasMathlib() {
		slog.Info("mathlib is already installed user-wide, use global-upgrade to upgrade it", "dir", p.Dir)
		return nil
	}
	report, err := p.AddMathlib(commandContext(cmd))
	if err != nil {
		return err
	}
	return PrintReport("global-install", report, false)
}

func RunGlobalUpgrade(cmd *cobra.Command, args []string) error {
	env, opts, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	p, err := project.UserWide(commandContext(cmd), env, opts)
	if err != nil {
		return err
	}
	upgrade := p.UpgradeMathlib
	if !p.HasMathlib() {
		slog.Info("no user-wide mathlib found, installing it", "dir", p.Dir)
		upgrade = p.AddMathlib
	}
	report, err := upgrade(commandContext(cmd))
	if err != nil {
		return err
	}
	return PrintReport("global-upgrade", report, false)
}
