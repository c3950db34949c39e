package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc <itinerary-id>",
	Short: "Recalculate a stored itinerary with exclusions and extra preferences",
	Long: `Recalculate plans a stored itinerary again for the same city, dates and budget.
The result is stored under a new id and the old id stops resolving. Only
persistent stores (sqlite, redis, mongo) keep itineraries between runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		prompt, _ := cmd.Flags().GetString("prompt")
		exclude, _ := cmd.Flags().GetStringArray("exclude")

		a, err := newApp(cmd.Context(), cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.planner.Recalculate(cmd.Context(), args[0], prompt, exclude)
		if err != nil {
			return fmt.Errorf("recalculating %s: %w", args[0], err)
		}
		if err := printDocument(os.Stdout, doc, format); err != nil {
			return err
		}
		return writeExports(cmd, a, doc)
	},
}

func init() {
	rootCmd.AddCommand(recalcCmd)
	recalcCmd.Flags().StringP("prompt", "p", "", "Additional preferences, e.g. \"more outdoor activities\"")
	recalcCmd.Flags().StringArrayP("exclude", "x", nil, "Event title to leave out (repeatable)")
	addOutputFlags(recalcCmd)
}
