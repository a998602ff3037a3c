package cli

import (
	"log/slog"

	"github.com/leanprover-community/mathlib-tools/internal/project"
	"github.com/spf13/cobra"
)

func RunNew(cmd *cobra.Command, args []string) error {
	env, opts, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	p, err := project.New(commandContext(cmd), env, path, opts)
	if err != nil {
		return err
	}
	slog.Info("created project", "name", p.Name(), "dir", p.Dir)
	return nil
}

func RunAddMathlib(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	report, err := p.AddMathlib(commandContext(cmd))
	if err != nil {
		return err
	}
	return PrintReport("add-mathlib", report, false)
}

func RunUpgradeMathlib(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	report, err := p.UpgradeMathlib(commandContext(cmd))
	if err != nil {
		return err
	}
	return PrintReport("upgrade-mathlib", report, false)
}

func RunBuild(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	return p.Build(commandContext(cmd))
}

func RunGet(cmd *cobra.Command, args []string) error {
	env, opts, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	createBranch, err := cmd.Flags().GetBool("new-branch")
	if err != nil {
		return err
	}

	name, url, branch := project.ParseProjectName(args[0])
	target := name
	if len(args) > 1 {
		target = args[1]
	}
	p, err := project.FromGitURL(commandContext(cmd), env, url, target, branch, createBranch, opts)
	if err != nil {
		return err
	}
	slog.Info("project ready", "name", p.Name(), "dir", p.Dir)
	return nil
}
