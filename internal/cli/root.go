package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leanproject",
		Short: "Manage Lean projects depending on mathlib",
		Long: `leanproject creates, clones and maintains Lean projects that depend on
mathlib. It downloads precompiled mathlib oleans, caches the oleans of
your own projects by git commit and restores them without clobbering
local work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
	}
	rootCmd.PersistentFlags().String("cache-url", "", "Override the base URL olean archives are downloaded from")
	rootCmd.PersistentFlags().Bool("force-download", false, "Download archives even if a local copy exists")
	rootCmd.PersistentFlags().Bool("no-lean-upgrade", false, "Keep the project's Lean version when adding or upgrading mathlib")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print debug logs")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print warnings and errors")

	// Project Commands
	newCmd := &cobra.Command{
		Use:   "new [path]",
		Short: "Create a new Lean project and prepare mathlib",
		Long:  "Create a new Lean project and prepare mathlib. If no directory is given, the current directory is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunNew,
	}

	addMathlibCmd := &cobra.Command{
		Use:   "add-mathlib",
		Short: "Add mathlib to the current project",
		Args:  cobra.NoArgs,
		RunE:  RunAddMathlib,
	}

	upgradeMathlibCmd := &cobra.Command{
		Use:     "upgrade-mathlib",
		Aliases: []string{"update-mathlib", "up"},
		Short:   "Upgrade mathlib and fetch its oleans",
		Args:    cobra.NoArgs,
		RunE:    RunUpgradeMathlib,
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the current project",
		Args:  cobra.NoArgs,
		RunE:  RunBuild,
	}

	getCmd := &cobra.Command{
		Use:   "get <name|url>[:branch] [dir]",
		Short: "Clone a project from a GitHub name or git url",
		Long: `Clone a project from a GitHub name or git url, into dir if given.
A GitHub name without / is a leanprover-community project. Append
:branch to check out a branch.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: RunGet,
	}
	getCmd.Flags().BoolP("new-branch", "b", false, "Create the branch instead of checking it out")

	// Cache Commands
	mkCacheCmd := &cobra.Command{
		Use:   "mk-cache",
		Short: "Cache olean files of the current commit",
		Args:  cobra.NoArgs,
		RunE:  RunMkCache,
	}
	mkCacheCmd.Flags().Bool("force", false, "Make cache even if the repository is dirty or cache exists")
	mkCacheCmd.Flags().Bool("json", false, "Print machine-readable output")

	getCacheCmd := &cobra.Command{
		Use:   "get-cache",
		Short: "Restore cached olean files",
		Args:  cobra.NoArgs,
		RunE:  RunGetCache,
	}
	getCacheCmd.Flags().Bool("force", false, "Get cache even if the repository is dirty")
	getCacheCmd.Flags().String("rev", "", "A git sha or branch name to get the cache of")
	getCacheCmd.Flags().Bool("fallback", false, "Use the cache of the closest ancestor commit when none exists for the revision")
	getCacheCmd.Flags().Bool("json", false, "Print machine-readable report")

	getMathlibCacheCmd := &cobra.Command{
		Use:   "get-mathlib-cache",
		Short: "Get mathlib oleans for the current project",
		Args:  cobra.NoArgs,
		RunE:  RunGetMathlibCache,
	}
	getMathlibCacheCmd.Flags().String("rev", "", "A mathlib git sha or branch name, mathlib only")
	getMathlibCacheCmd.Flags().Bool("fallback", false, "Use the cache of the closest ancestor commit when none exists for the revision")
	getMathlibCacheCmd.Flags().Bool("json", false, "Print machine-readable report")

	deleteZombiesCmd := &cobra.Command{
		Use:   "delete-zombies",
		Short: "Delete oleans whose source file is gone",
		Args:  cobra.NoArgs,
		RunE:  RunDeleteZombies,
	}
	deleteZombiesCmd.Flags().Bool("json", false, "Print machine-readable output")

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every olean of the project",
		Args:  cobra.NoArgs,
		RunE:  RunClean,
	}
	cleanCmd.Flags().Bool("json", false, "Print machine-readable output")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check that oleans of core and mathlib are newer than their sources",
		Args:  cobra.NoArgs,
		RunE:  RunCheck,
	}
	checkCmd.Flags().Bool("json", false, "Print machine-readable output")

	setURLCmd := &cobra.Command{
		Use:   "set-url <url>",
		Short: "Set the base URL olean archives are downloaded from",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSetURL,
	}

	hooksCmd := &cobra.Command{
		Use:   "hooks",
		Short: "Setup git hooks making and restoring the olean cache",
		Args:  cobra.NoArgs,
		RunE:  RunHooks,
	}
	hooksCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	// Source Commands
	importGraphCmd := &cobra.Command{
		Use:   "import-graph [output]",
		Short: "Write the import graph of the project",
		Long: `Write the import graph of the project to output, whose suffix picks the
format: .dot, .rawdot, .gexf, .graphml or a graphviz format such as .pdf.
Without output, print the number of modules and the longest import chain.`,
		Args: cobra.MaximumNArgs(1),
		RunE: RunImportGraph,
	}
	importGraphCmd.Flags().String("to", "", "Only keep modules imported by this module")
	importGraphCmd.Flags().String("from", "", "Only keep modules importing this module")
	importGraphCmd.Flags().Bool("exclude-tactics", false, "Drop tactic and meta modules except tactic.basic and tactic.core")
	importGraphCmd.Flags().Bool("reduce", false, "Drop imports implied by other imports")
	importGraphCmd.Flags().String("port-status", "", "YAML file mapping modules to their port status")
	importGraphCmd.Flags().Bool("delete-ported", false, "Drop modules marked as ported (needs --port-status)")

	mkAllCmd := &cobra.Command{
		Use:   "mk-all",
		Short: "Create all.lean importing every module of the project",
		Args:  cobra.NoArgs,
		RunE:  RunMkAll,
	}

	declsCmd := &cobra.Command{
		Use:   "decls <output.json>",
		Short: "Dump the declarations visible from the project",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDecls,
	}

	// Mathlib Development Commands
	prCmd := &cobra.Command{
		Use:   "pr <branch>",
		Short: "Prepare a new branch for a mathlib pull request",
		Args:  cobra.ExactArgs(1),
		RunE:  RunPR,
	}
	prCmd.Flags().Bool("force", false, "Proceed even if the repository is dirty")

	rebaseCmd := &cobra.Command{
		Use:   "rebase",
		Short: "Update master with its oleans and rebase the current branch on it",
		Args:  cobra.NoArgs,
		RunE:  RunRebase,
	}
	rebaseCmd.Flags().Bool("force", false, "Proceed even if the repository is dirty")

	// User-wide Commands
	globalInstallCmd := &cobra.Command{
		Use:   "global-install",
		Short: "Install mathlib in the user-wide project ~/.lean",
		Args:  cobra.NoArgs,
		RunE:  RunGlobalInstall,
	}

	globalUpgradeCmd := &cobra.Command{
		Use:   "global-upgrade",
		Short: "Upgrade mathlib in the user-wide project ~/.lean",
		Args:  cobra.NoArgs,
		RunE:  RunGlobalUpgrade,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("leanproject %s\n", version)
		},
	}

	rootCmd.AddCommand(
		newCmd,
		addMathlibCmd,
		upgradeMathlibCmd,
		buildCmd,
		getCmd,
		mkCacheCmd,
		getCacheCmd,
		getMathlibCacheCmd,
		deleteZombiesCmd,
		cleanCmd,
		checkCmd,
		setURLCmd,
		hooksCmd,
		importGraphCmd,
		mkAllCmd,
		declsCmd,
		prCmd,
		rebaseCmd,
		globalInstallCmd,
		globalUpgradeCmd,
		versionCmd,
	)

	return rootCmd
}

func setupLogging(cmd *cobra.Command) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to read --verbose flag: %w", err)
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to read --quiet flag: %w", err)
	}

	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}
