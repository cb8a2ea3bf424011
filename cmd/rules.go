package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reglint/reglint/internal/config"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List all configured rules and their default levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		provided, err := config.Provided()
		if err != nil {
			return fmt.Errorf("failed to read provided config: %w", err)
		}

		type row struct {
			category string
			name     string
			level    string
		}

		var rows []row

		for category, rulesByCategory := range provided.Rules {
			for name, rule := range rulesByCategory {
				rows = append(rows, row{category: category, name: name, level: rule.Level})
			}
		}

		sort.Slice(rows, func(i, j int) bool {
			if rows[i].category != rows[j].category {
				return rows[i].category < rows[j].category
			}

			return rows[i].name < rows[j].name
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tRULE\tLEVEL")

		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.category, r.name, r.level)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
