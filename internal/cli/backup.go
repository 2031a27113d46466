package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "backup",
		Short:         "Copy the store and its WAL sidecars",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return backupStore(rootOpts, output, cmd)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "backup file (default: library.4sl.<timestamp>.bak)")

	return cmd
}

func backupStore(opts *RootOptions, output string, cmd *cobra.Command) error {
	path, err := opts.storePath()
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve store path", err)
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "store not found", err)
	}

	if output == "" {
		output = fmt.Sprintf("library.4sl.%s.bak", time.Now().Format("20060102-150405"))
	}

	copied := []string{output}
	if err := copyFileAtomic(path, output); err != nil {
		return WrapExitError(ExitCommandError, "copy store", err)
	}

	// WAL and shared-memory sidecars carry unflushed pages; a backup
	// without them can miss the host's most recent writes.
	for _, suffix := range []string{"-wal", "-shm"} {
		src := path + suffix
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := output + suffix
		if err := copyFileAtomic(src, dst); err != nil {
			return WrapExitError(ExitCommandError, "copy "+suffix+" sidecar", err)
		}
		copied = append(copied, dst)
	}

	f := formatter(cmd, opts)
	if f.Format == "json" {
		return f.Success(map[string]any{"source": path, "files": copied})
	}
	for _, file := range copied {
		fmt.Fprintf(f.Writer, "Backed up %s\n", file)
	}
	return nil
}

func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return atomic.WriteFile(dst, in)
}
