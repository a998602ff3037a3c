package cli

import (
	"bytes"
	"fmt"

	"github.com/leanprover-community/mathlib-tools/internal/decls"
	"github.com/leanprover-community/mathlib-tools/internal/fileutil"
	"github.com/spf13/cobra"
)

func RunMkAll(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	path, err := p.MakeAll()
	if err != nil {
		return err
	}
	fmt.Printf("mk-all: wrote %s\n", path)
	return nil
}

func RunDecls(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	found, err := p.ListDecls(commandContext(cmd))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := decls.WriteJSON(&buf, found); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(args[0], buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write declarations: %w", err)
	}
	fmt.Printf("decls: %d declarations written to %s\n", len(found), args[0])
	return nil
}
