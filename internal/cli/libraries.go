package cli

import (
	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/repo"
)

// NewLibrariesCommand creates the libraries command group. Libraries share
// the setlist command shapes minus reorder: their membership is unordered.
func NewLibrariesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "libraries",
		Short: "Manage libraries and their contents",
	}
	cmd.AddCommand(newCollectionLsCommand(rootOpts, repo.Libraries))
	cmd.AddCommand(newCollectionShowCommand(rootOpts, repo.Libraries))
	cmd.AddCommand(newCollectionCreateCommand(rootOpts, repo.Libraries))
	cmd.AddCommand(newCollectionRenameCommand(rootOpts, repo.Libraries))
	cmd.AddCommand(newCollectionDeleteCommand(rootOpts, repo.Libraries))
	cmd.AddCommand(newCollectionAddCommand(rootOpts, repo.Libraries))
	cmd.AddCommand(newCollectionRemoveCommand(rootOpts, repo.Libraries))
	return cmd
}
