package cli

import (
	"os"

	"github.com/leanprover-community/mathlib-tools/internal/fileutil"
	"github.com/leanprover-community/mathlib-tools/internal/project"
	"github.com/spf13/cobra"
)

func RunMkCache(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	path, err := p.MkCache(commandContext(cmd), force)
	if err != nil {
		return err
	}
	summary := CacheSummary{Mode: "mk-cache", Rev: p.Rev, Archive: path}
	if info, err := os.Stat(path); err == nil {
		summary.Size = info.Size()
	}
	return PrintCacheSummary(summary, asJSON)
}

func RunGetCache(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	rev, err := OptionalStringFlag(cmd, "rev")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	report, err := p.GetCache(commandContext(cmd), rev, force)
	if err != nil {
		return err
	}
	return PrintReport("get-cache", report, asJSON)
}

func RunGetMathlibCache(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	rev, err := OptionalStringFlag(cmd, "rev")
	if err != nil {
		return err
	}
	if rev != "" && !p.IsMathlib() {
		return project.ErrMathlibOnly
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	report, err := p.GetMathlibOlean(commandContext(cmd), rev)
	if err != nil {
		return err
	}
	return PrintReport("get-mathlib-cache", report, asJSON)
}

func RunDeleteZombies(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	removed, err := p.DeleteZombies()
	if err != nil {
		return err
	}
	return PrintFileList(FileListSummary{Mode: "delete-zombies", Dir: p.Dir, Files: removed}, asJSON)
}

func RunClean(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	removed, err := p.Clean()
	if err != nil {
		return err
	}
	return PrintFileList(FileListSummary{Mode: "clean", Dir: p.Dir, Files: removed}, asJSON)
}

func RunCheck(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	ts, err := p.CheckTimestamps()
	if err != nil {
		return err
	}

	summary := CheckSummary{Mode: "check", Timestamps: ts, Healthy: ts.CoreOK && ts.MathlibOK}
	if !ts.CoreOK {
		summary.Suggestions = append(summary.Suggestions, "core library oleans are older than their sources: reinstall the toolchain with elan")
	}
	if !ts.MathlibOK {
		summary.Suggestions = append(summary.Suggestions, "mathlib oleans are older than their sources: run `leanproject get-mathlib-cache`")
	}
	summary.Suggestions = fileutil.DedupeStrings(summary.Suggestions)
	return PrintCheckSummary(summary, asJSON)
}

func RunSetURL(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	return env.Config.SetDownloadURL(args[0])
}
