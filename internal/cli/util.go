package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/config"
	"github.com/leanprover-community/mathlib-tools/internal/project"
	"github.com/spf13/cobra"
)

// loadEnv builds the environment commands run in. Tests replace it.
var loadEnv = func() (*project.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return project.NewEnv(cfg)
}

// confirmInput is read by askConfirmation.
var confirmInput io.Reader = os.Stdin

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// setupEnv loads the environment and attaches a download progress bar
// unless output is JSON.
func setupEnv(cmd *cobra.Command) (*project.Env, project.Options, error) {
	opts, err := ParseProjectOptions(cmd)
	if err != nil {
		return nil, opts, err
	}
	env, err := loadEnv()
	if err != nil {
		return nil, opts, err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json")
	if err != nil {
		return nil, opts, err
	}
	if env.Progress == nil {
		env.Progress = newDownloadProgress("downloading oleans", asJSON).Update
	}
	return env, opts, nil
}

// openProject opens the project containing the working directory.
func openProject(cmd *cobra.Command) (*project.LeanProject, error) {
	env, opts, err := setupEnv(cmd)
	if err != nil {
		return nil, err
	}
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return nil, err
	}
	return project.FromPath(commandContext(cmd), env, rootPath, opts)
}

func askConfirmation(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s (y/n)? ", prompt)
	answer, err := bufio.NewReader(confirmInput).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.TrimSpace(answer)
	return answer == "y" || answer == "Y"
}
