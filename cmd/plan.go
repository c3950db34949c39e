package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sw33tLie/metropolis/internal/utils"
	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// planCmd implements: metropolis plan
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate an itinerary from the command line",
	Example: `  metropolis plan --city Providence --state RI --date 2025-04-10 --budget '$1-$50' --preferences "live music"
  metropolis plan --city Boston --state MA --date 2025-05-01 --date 2025-05-02 --format yaml --ics boston.ics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'metropolis plan --help'", args[0])
		}
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		city, _ := cmd.Flags().GetString("city")
		state, _ := cmd.Flags().GetString("state")
		dates, _ := cmd.Flags().GetStringSlice("date")
		budgetFlag, _ := cmd.Flags().GetString("budget")
		prefs, _ := cmd.Flags().GetString("preferences")

		budget, err := itinerary.ParseBudget(budgetFlag)
		if err != nil {
			return fmt.Errorf("%w (available: %s)", err, budgetList())
		}
		req := itinerary.Request{City: city, State: state, Dates: dates, Budget: budget}
		if strings.TrimSpace(prefs) != "" {
			req.Preferences = []string{prefs}
		}

		a, err := newApp(cmd.Context(), cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		utils.Log.Infof("Planning %s, %s for %s", city, state, strings.Join(dates, ", "))
		doc, err := a.planner.Generate(cmd.Context(), req)
		if err != nil {
			return err
		}

		if err := printDocument(os.Stdout, doc, format); err != nil {
			return err
		}
		return writeExports(cmd, a, doc)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().String("city", "", "City to plan for")
	planCmd.Flags().String("state", "", "State or region of the city")
	planCmd.Flags().StringSlice("date", nil, "Date to plan, YYYY-MM-DD (repeat or comma-separate for several days)")
	planCmd.Flags().String("budget", string(itinerary.BudgetUpTo50), "Budget range: "+budgetList())
	planCmd.Flags().String("preferences", "", "Free-text preferences, e.g. \"live music, no museums\"")
	addOutputFlags(planCmd)
	planCmd.MarkFlagRequired("city")
	planCmd.MarkFlagRequired("state")
	planCmd.MarkFlagRequired("date")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "txt", "Output format: txt, json or yaml")
	cmd.Flags().String("ics", "", "Also write the itinerary as an iCalendar file to this path")
	cmd.Flags().String("pdf", "", "Also write the itinerary as a PDF to this path")
}

func budgetList() string {
	var out []string
	for _, b := range itinerary.Budgets() {
		out = append(out, string(b))
	}
	return strings.Join(out, ", ")
}

func checkFormat(format string) error {
	switch format {
	case "txt", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (available: txt, json, yaml)", format)
	}
}

func printDocument(w io.Writer, doc *itinerary.Document, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(w, "%s (%s)\n", doc.Summary, doc.ID)
	if doc.PreviousID != "" {
		fmt.Fprintf(w, "Revision %d, replaces %s\n", doc.Revision, doc.PreviousID)
	}
	fmt.Fprintf(w, "Budget %s, estimated total $%.2f\n", doc.Request.Budget, doc.TotalCost)
	if len(doc.Entries) == 0 {
		fmt.Fprintln(w, "\nNo events fit these criteria.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, date := range doc.Request.Dates {
		entries := doc.EntriesOn(date)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\n", date)
		for _, e := range entries {
			fmt.Fprintf(tw, "  %s-%s\t%s\t%s\t$%.2f\n", e.StartTime, e.EndTime, e.Title, e.Location, e.EstimatedCost)
		}
	}
	return tw.Flush()
}

func writeExports(cmd *cobra.Command, a *app, doc *itinerary.Document) error {
	if path, _ := cmd.Flags().GetString("ics"); path != "" {
		data, err := a.ics.Encode(doc)
		if err != nil {
			return fmt.Errorf("failed to export calendar: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		utils.Log.Infof("Wrote calendar to %s", path)
	}
	if path, _ := cmd.Flags().GetString("pdf"); path != "" {
		data, err := a.pdf.Encode(doc)
		if err != nil {
			return fmt.Errorf("failed to export PDF: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		utils.Log.Infof("Wrote PDF to %s", path)
	}
	return nil
}
