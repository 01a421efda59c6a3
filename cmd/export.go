package main

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var (
	exportTaskID string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a task's contacts to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		task, err := st.GetTask(ctx, exportTaskID)
		if err != nil {
			return eris.Wrap(err, "export: load task")
		}

		contacts, err := st.ListContacts(ctx, task.ID)
		if err != nil {
			return eris.Wrap(err, "export: load contacts")
		}
		if len(contacts) == 0 {
			return eris.Errorf("task %s has no saved contacts", task.ID)
		}

		if err := writeWorkbook(exportOut, contacts); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("task", task.ID),
			zap.Int("contacts", len(contacts)),
			zap.String("file", exportOut),
		)
		return nil
	},
}

func writeWorkbook(path string, contacts []model.MergedContact) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Name", "Primary Email", "All Emails", "Phone", "Website",
		"Address", "Category", "Country", "Has Contact", "Description",
	} {
		header.AddCell().SetString(h)
	}

	for _, c := range contacts {
		row := sheet.AddRow()
		row.AddCell().SetString(c.Name)
		row.AddCell().SetString(c.PrimaryEmail)
		row.AddCell().SetString(strings.Join(c.Emails, ", "))
		row.AddCell().SetString(c.Phone)
		row.AddCell().SetString(c.Website)
		row.AddCell().SetString(c.Address)
		row.AddCell().SetString(c.Category)
		row.AddCell().SetString(c.Country)
		row.AddCell().SetString(strconv.FormatBool(c.HasContactInfo))
		row.AddCell().SetString(c.Description)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportTaskID, "task", "", "task ID to export (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "leads.xlsx", "output file path")
	_ = exportCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(exportCmd)
}
