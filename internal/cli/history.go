package cli

import (
	"github.com/spf13/cobra"

	"github.com/PipeOpsHQ/medical-coder-api/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var q history.Query
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Look up runs by run id or patient id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.buildServices(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close(cmd.Context()) }()

			hist, err := history.New(svc.store, history.WithLogger(a.logger))
			if err != nil {
				return err
			}
			records, err := hist.QueryHistory(cmd.Context(), q)
			if err != nil {
				return err
			}
			if q.Normalize().RunID != "" {
				return printJSON(cmd.OutOrStdout(), records[0])
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&q.RunID, "run-id", "", "run identifier")
	cmd.Flags().StringVar(&q.PatientID, "patient-id", "", "patient identifier")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List every persisted run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.buildServices(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close(cmd.Context()) }()

			hist, err := history.New(svc.store, history.WithLogger(a.logger))
			if err != nil {
				return err
			}
			runs, err := hist.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
}
