package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/metropolis/internal/utils"
	"github.com/sw33tLie/metropolis/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <itinerary-id>",
	Short: "Write a stored itinerary as .ics and/or .pdf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("type")
		dir, _ := cmd.Flags().GetString("dir")
		if kind != "ics" && kind != "pdf" && kind != "all" {
			return fmt.Errorf("unknown export type %q (available: ics, pdf, all)", kind)
		}

		a, err := newApp(cmd.Context(), cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.store.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading %s: %w", args[0], err)
		}

		if kind == "ics" || kind == "all" {
			data, err := a.ics.Encode(doc)
			if err != nil {
				return fmt.Errorf("failed to export calendar: %w", err)
			}
			path := filepath.Join(dir, export.Filename(doc))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Println(path)
		}
		if kind == "pdf" || kind == "all" {
			data, err := a.pdf.Encode(doc)
			if err != nil {
				return fmt.Errorf("failed to export PDF: %w", err)
			}
			path := filepath.Join(dir, export.PDFFilename(doc))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Println(path)
		}
		utils.Log.Debugf("Exported %s (%d entries)", doc.ID, len(doc.Entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("type", "t", "all", "What to write: ics, pdf or all")
	exportCmd.Flags().StringP("dir", "d", ".", "Directory to write files to")
}
