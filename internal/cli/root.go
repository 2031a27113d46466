package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/guard"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB      string
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the forscore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "forscore",
		Short: "Inspect and edit a forScore library database",
		Long: `Command-line access to a forScore library store (library.4sl).

Reads are safe while the app is running; every mutating command runs in a
single transaction with consistency checks before commit, and rolls back
completely on any failure.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			logLevel := slog.LevelWarn
			if opts.Verbose {
				logLevel = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to the library store (default: the app container's library.4sl)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewScoresCommand(opts))
	cmd.AddCommand(NewSetlistsCommand(opts))
	cmd.AddCommand(NewLibrariesCommand(opts))
	cmd.AddCommand(NewMetaCommand(opts, "composers", "composer"))
	cmd.AddCommand(NewMetaCommand(opts, "genres", "genre"))
	cmd.AddCommand(NewMetaCommand(opts, "tags", "tag"))
	cmd.AddCommand(NewBookmarksCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewFixesCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// DefaultPath is the store's conventional location inside the app's
// container on macOS.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, "Library", "Containers",
		"com.mgsdevelopment.forscoremac", "Data", "Library",
		"forScore", "library.4sl"), nil
}

func (o *RootOptions) storePath() (string, error) {
	if o.DB != "" {
		return o.DB, nil
	}
	return DefaultPath()
}

// openStore opens the store read-only for listings.
func openStore(opts *RootOptions) (*store.Store, error) {
	path, err := opts.storePath()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "resolve store path", err)
	}
	slog.Debug("opening store", "path", path, "writable", false)
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return st, nil
}

// openStoreRW opens the store for mutation with the consistency guard
// armed on every transaction.
func openStoreRW(opts *RootOptions) (*store.Store, error) {
	path, err := opts.storePath()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "resolve store path", err)
	}
	slog.Debug("opening store", "path", path, "writable", true)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	st.SetGuard(guard.Check)
	return st, nil
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
