package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func RunHooks(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	if !yes && !askConfirmation("This will install git hooks making and restoring the olean cache. Continue") {
		fmt.Println("Cancelled...")
		return nil
	}

	written, err := p.SetupGitHooks()
	if err != nil {
		return err
	}
	fmt.Printf("installed hooks (%d): %s\n", len(written), SummarizePaths(relativePaths(p.Dir, written), 8))
	return nil
}
