package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vedsharma/analyze-request/internal/binder"
	"github.com/vedsharma/analyze-request/internal/format"
)

// requestOptions are the flags of the per-method commands
type requestOptions struct {
	headers     []string
	headersJSON string
	data        string
	timeoutMs   int
	proxy       string
	selectID    string
	saveName    string
	description string
	yes         bool
	verbose     bool
}

var methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

func requestCommands(a *app) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(methods))
	for _, method := range methods {
		opts := &requestOptions{}
		cmd := &cobra.Command{
			Use:   strings.ToLower(method) + " <url>",
			Short: fmt.Sprintf("Send a %s request", method),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runRequest(cmd, method, args[0], opts)
			},
		}
		addRequestFlags(cmd, opts)
		cmds = append(cmds, cmd)
	}
	return cmds
}

func addRequestFlags(cmd *cobra.Command, opts *requestOptions) {
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", []string{}, "Add header (can be used multiple times)")
	cmd.Flags().StringVar(&opts.headersJSON, "headers-json", "", `Headers as a JSON object, e.g. '{"Accept":"application/json"}'`)
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "Request body (string or @filename)")
	cmd.Flags().IntVar(&opts.timeoutMs, "timeout", 0, "Timeout in milliseconds (default from config, 15000)")
	cmd.Flags().StringVar(&opts.proxy, "proxy", "", "Send through the proxy server at this URL")
	cmd.Flags().StringVar(&opts.selectID, "select", "", "Saved request to keep in sync with this one")
	addSaveFlags(cmd, &opts.saveName, &opts.description, &opts.yes)
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show response headers")
}

func addSaveFlags(cmd *cobra.Command, name, description *string, yes *bool) {
	cmd.Flags().StringVar(name, "save", "", "Save the request under this name")
	cmd.Flags().StringVar(description, "description", "", "Description of the saved request")
	cmd.Flags().BoolVarP(yes, "yes", "y", false, "Answer yes to overwrite prompts")
}

func (a *app) runRequest(cmd *cobra.Command, method, rawURL string, opts *requestOptions) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ui := newForm(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	ui.assumeYes = opts.yes
	ui.showHeaders = opts.verbose
	ui.request, ui.err = buildRequest(method, rawURL, opts, a.cfg.TimeoutMs)

	b := binder.New(store, ui, a.logger.With("component", "binder"))
	sess := &binder.Session{}

	if opts.selectID != "" {
		if err := b.Select(sess, opts.selectID); err != nil && !notice(cmd, err) {
			return err
		}
	}

	res, bound, err := b.Send(cmd.Context(), sess, a.executor(opts.proxy))
	if err != nil && !notice(cmd, err) {
		return err
	}
	if bound != nil {
		format.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Updated last response of '%s'", bound.Name))
	}

	if opts.saveName != "" {
		if err := a.save(cmd, b, sess, ui, opts.saveName, opts.description); err != nil {
			return err
		}
	}

	if !res.OK {
		return errSilent
	}
	return nil
}

// save runs the save policy and reports what happened
func (a *app) save(cmd *cobra.Command, b *binder.Binder, sess *binder.Session, ui *form, name, description string) error {
	if ui.request != nil && format.LooksSensitive(ui.request.Body) {
		format.PrintWarning(cmd.ErrOrStderr(), "Request body may contain sensitive data (e.g., passwords, tokens). It will be stored in plain text.")
	}

	// An unset description keeps the one of the selected item
	if !cmd.Flags().Changed("description") {
		description = ui.description
	}

	out, err := b.Save(sess, name, description)
	if err != nil {
		if notice(cmd, err) {
			return nil
		}
		return err
	}

	switch out.Action {
	case binder.ActionCreated:
		format.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Saved '%s' (%s)", out.Item.Name, out.Item.ID))
	case binder.ActionUpdated:
		format.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Updated '%s' (%s)", out.Item.Name, out.Item.ID))
	default:
		format.PrintWarning(cmd.ErrOrStderr(), "Save aborted")
	}
	return nil
}
