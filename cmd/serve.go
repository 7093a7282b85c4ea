package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	apihttp "github.com/vedsharma/analyze-request/internal/http"
	"github.com/vedsharma/analyze-request/internal/server"
)

func cmdServe(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the request proxy server",
		Long: `Run the proxy server. POST /api/request executes the request in the
body and answers with the response record. Nothing is persisted server side.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.logger.With("component", "server")
			srv := server.New(apihttp.NewClient(logger), logger)

			addr := fmt.Sprintf(":%d", a.cfg.Port)
			fmt.Fprintf(cmd.OutOrStdout(), "analyze-request running on http://localhost:%d\n", a.cfg.Port)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().Int("port", 0, "listen port (default 5173, or $PORT)")
	if err := a.v.BindPFlag("port", cmd.Flags().Lookup("port")); err != nil {
		panic(err)
	}
	return cmd
}

func cmdConfig(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
