package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vedsharma/analyze-request/internal/binder"
	"github.com/vedsharma/analyze-request/internal/format"
)

func cmdSaved(a *app) *cobra.Command {
	savedCmd := &cobra.Command{
		Use:     "saved",
		Aliases: []string{"s"},
		Short:   "Manage saved requests",
	}

	savedCmd.AddCommand(
		cmdSavedList(a),
		cmdSavedShow(a),
		cmdSavedRun(a),
		cmdSavedDelete(a),
		cmdSavedCurl(a),
	)
	return savedCmd
}

func cmdSavedList(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved requests, most recently updated first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			items, err := store.List()
			if err != nil {
				return fmt.Errorf("failed to load saved requests: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}

			format.PrintSavedList(cmd.OutOrStdout(), items, "")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored records as JSON")
	return cmd
}

func cmdSavedShow(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved request and its last response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			item, err := store.GetByID(args[0])
			if err != nil {
				return fmt.Errorf("failed to load saved request: %w", err)
			}
			if item == nil {
				return fmt.Errorf("saved request %s not found", args[0])
			}

			format.PrintSavedDetail(cmd.OutOrStdout(), item, reveal)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show sensitive header values")
	return cmd
}

func cmdSavedRun(a *app) *cobra.Command {
	var (
		proxy, saveName, description string
		yes, verbose, showSaved      bool
	)
	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Send a saved request and keep its last response current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ui := newForm(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			ui.assumeYes = yes
			ui.showHeaders = verbose
			ui.showSaved = showSaved

			b := binder.New(store, ui, a.logger.With("component", "binder"))
			sess := &binder.Session{}

			item, err := b.Load(sess, args[0])
			if err != nil {
				if binder.IsStale(err) {
					return fmt.Errorf("saved request %s not found", args[0])
				}
				return err
			}
			format.PrintRequest(cmd.ErrOrStderr(), item.Request, false)

			res, bound, err := b.Send(cmd.Context(), sess, a.executor(proxy))
			if err != nil && !notice(cmd, err) {
				return err
			}
			if bound != nil {
				format.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Updated last response of '%s'", bound.Name))
			}

			if saveName != "" {
				if err := a.save(cmd, b, sess, ui, saveName, description); err != nil {
					return err
				}
			}

			if !res.OK {
				return errSilent
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&proxy, "proxy", "", "Send through the proxy server at this URL")
	addSaveFlags(cmd, &saveName, &description, &yes)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show response headers")
	cmd.Flags().BoolVar(&showSaved, "show-saved", false, "Print the stored last response before sending")
	return cmd
}

func cmdSavedDelete(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved request",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ui := newForm(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			ui.assumeYes = yes

			b := binder.New(store, ui, a.logger.With("component", "binder"))
			deleted, err := b.Delete(&binder.Session{}, args[0])
			if err != nil {
				if binder.IsStale(err) {
					return fmt.Errorf("saved request %s not found", args[0])
				}
				return err
			}

			if !deleted {
				format.PrintWarning(cmd.ErrOrStderr(), "Delete aborted")
				return nil
			}
			format.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted %s", args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func cmdSavedCurl(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "curl <id>",
		Short: "Print a saved request as a curl command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			item, err := store.GetByID(args[0])
			if err != nil {
				return fmt.Errorf("failed to load saved request: %w", err)
			}
			if item == nil {
				return fmt.Errorf("saved request %s not found", args[0])
			}

			fmt.Fprintln(cmd.OutOrStdout(), format.BuildCurl(item.Request))
			return nil
		},
	}
}
