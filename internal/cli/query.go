package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashureev/datagym/internal/dataset"
	"github.com/ashureev/datagym/internal/evaluator"
	"github.com/spf13/cobra"
)

type queryOptions struct {
	file   string
	engine string
	format string
}

func newQueryCommand() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL|-]",
		Short: "Run a SQL query against a CSV or XLSX file",
		Long: `Load a CSV or XLSX file into a fresh in-memory database under the
table name derived from its file name, run the query and print the result.

Without --file the built-in sales sample is used (table "sales").`,
		Example: `  datagym query --file "My Sales.csv" "SELECT region, SUM(quantity) FROM my_sales GROUP BY 1"
  datagym query --engine duckdb --output json "SELECT * FROM sales LIMIT 3"
  echo "SELECT COUNT(*) FROM sales" | datagym query -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readSource(cmd.InOrStdin(), args[0], false)
			if err != nil {
				return err
			}
			return runQuery(cmd, opts, query)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV or XLSX file to query (default: built-in sample)")
	cmd.Flags().StringVarP(&opts.engine, "engine", "e", "sqlite", "Query engine: "+strings.Join(evaluator.EngineNames(), ", "))
	cmd.Flags().StringVarP(&opts.format, "output", "o", FormatTable, "Output format: "+strings.Join(formats, ", "))

	_ = cmd.RegisterFlagCompletionFunc("engine", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return evaluator.EngineNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return formats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, opts *queryOptions, query string) error {
	engine, err := evaluator.NewEngine(opts.engine)
	if err != nil {
		return err
	}

	reg, err := loadRegistration(opts.file)
	if err != nil {
		return err
	}

	result, err := evaluator.NewQueryEvaluator(engine).Run(cmd.Context(), query, reg.Dataset, reg.TableName)
	if err != nil {
		return err
	}
	return renderDataset(cmd.OutOrStdout(), result, opts.format)
}

func loadRegistration(path string) (*dataset.Registration, error) {
	if path == "" {
		ds, err := dataset.Sample()
		if err != nil {
			return nil, err
		}
		return dataset.Register(dataset.SampleFileName, ds)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := dataset.Parse(path, f)
	if err != nil {
		return nil, err
	}
	return dataset.Register(path, ds)
}

// readSource returns arg itself, or the contents of stdin for "-". With
// fromFile set, arg names a file to read.
func readSource(stdin io.Reader, arg string, fromFile bool) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case fromFile:
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", arg, err)
		}
		return string(data), nil
	default:
		return arg, nil
	}
}
