package cli

import (
	"fmt"

	"github.com/ashureev/datagym/internal/evaluator"
	"github.com/spf13/cobra"
)

func newScriptCommand() *cobra.Command {
	var maxSteps uint64

	cmd := &cobra.Command{
		Use:   "script FILE|-",
		Short: "Run a Python (Starlark) script and print its output",
		Long: `Run a script in a fresh namespace and print what it wrote with print().

Output is only shown when the script completes; on failure the error is
reported and the exit status is non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readSource(cmd.InOrStdin(), args[0], true)
			if err != nil {
				return err
			}
			out, err := evaluator.NewScriptEvaluator(maxSteps).Run(cmd.Context(), script)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().Uint64Var(&maxSteps, "max-steps", 0, "Abort after this many execution steps (0 = unlimited)")
	return cmd
}
