package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/parsers"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	parseSource   string
	parseAccount  string
	parseStrategy string
	parseFormat   string
)

var parseCmd = &cobra.Command{
	Use:   "parse <statement.csv|->",
	Short: "Parse a broker statement and print the rows it would import",
	Long: `Parse runs the statement parser offline, without a database.

Example:
  smart-trader parse --account real --format json statement.csv
  cat statement.csv | smart-trader parse -`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseSource, "source", "s", parsers.DefaultSource, "broker the statement comes from")
	parseCmd.Flags().StringVarP(&parseAccount, "account", "a", string(models.AccountDemo), "account label stamped on rows (demo, real)")
	parseCmd.Flags().StringVar(&parseStrategy, "strategy", "", "strategy applied to every row")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "yaml", "output format (yaml, json)")
}

func runParse(cmd *cobra.Command, args []string) error {
	logger.InitLoggerWithWriter("warn", cmd.ErrOrStderr())

	account, err := models.ParseAccountLabel(parseAccount)
	if err != nil {
		return err
	}
	parser, err := parsers.GetParser(parseSource)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	result, err := parser.Parse(in, models.ImportOptions{
		AccountLabel: account,
		Strategy:     parseStrategy,
		Today:        time.Now(),
	})
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), result, parseFormat)
}

func writeResult(w io.Writer, result *models.ImportResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (supported: yaml, json)", format)
	}
}
