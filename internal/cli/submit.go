package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
)

func newSubmitCmd(a *app) *cobra.Command {
	var patientID string
	var maxLoops int
	cmd := &cobra.Command{
		Use:   "submit [documentation|-]",
		Short: "Run one patient case synchronously and print the stored run",
		Long: `submit runs a single case through the configured engine and stores the
result. Documentation is taken from the arguments, or from stdin when the
only argument is "-".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocumentation(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			svc, err := a.buildServices(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close(cmd.Context()) }()

			res, err := svc.orchestrator.SubmitRun(cmd.Context(), orchestrator.Case{
				PatientID:     patientID,
				Documentation: doc,
				MaxLoops:      maxLoops,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&patientID, "patient-id", "", "patient identifier (required)")
	cmd.Flags().IntVar(&maxLoops, "max-loops", orchestrator.DefaultMaxLoops, "review loops the engine runs")
	_ = cmd.MarkFlagRequired("patient-id")
	return cmd
}

func readDocumentation(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) == "--" {
		args = args[1:]
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read documentation from stdin: %w", err)
		}
		args = []string{string(raw)}
	}
	doc := strings.TrimSpace(strings.Join(args, " "))
	if doc == "" {
		return "", fmt.Errorf("patient documentation is required")
	}
	return doc, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
