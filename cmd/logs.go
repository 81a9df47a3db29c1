/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blacktop/pagepost/internal/history"
	"github.com/blacktop/pagepost/internal/pagepost"
)

var (
	logsFailed     bool
	logsSuccessful bool
	logsJSON       bool
	clearYes       bool
)

func newLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the publish log, newest first",
		Args:  cobra.NoArgs,
		RunE:  runLogs,
	}
	cmd.Flags().BoolVar(&logsFailed, "failed", false, "Only show failed attempts")
	cmd.Flags().BoolVar(&logsSuccessful, "successful", false, "Only show successful attempts")
	cmd.Flags().BoolVar(&logsJSON, "json", false, "Print records as JSON")
	cmd.MarkFlagsMutuallyExclusive("failed", "successful")

	clearCmd := &cobra.Command{
		Use:       "clear successful|failed",
		Short:     "Remove successful or failed records",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"successful", "failed"},
		RunE:      runLogsClear,
	}
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(clearCmd)

	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	log, err := e.openLog()
	if err != nil {
		return err
	}
	defer log.Close()

	records, err := log.List(ctx)
	if err != nil {
		return err
	}

	succeeded, failed := history.Split(records)
	switch {
	case logsFailed:
		records = failed
	case logsSuccessful:
		records = succeeded
	}
	records = history.Newest(records)

	if logsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if records == nil {
			records = []history.Record{}
		}
		return enc.Encode(records)
	}

	renderLogs(cmd.OutOrStdout(), records, e.pageNames(ctx))
	return nil
}

func renderLogs(out io.Writer, records []history.Record, names map[string]string) {
	ui := newUI()
	if len(records) == 0 {
		fmt.Fprintln(out, ui.dim("No log entries."))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Publish log (%d)", len(records))))
	for _, rec := range records {
		badge := successBadge.Render("OK")
		if !rec.Success {
			badge = failedBadge.Render("FAILED")
		}
		fmt.Fprintf(out, "%s %s %s\n", badge, labelStyle.Render(recordLabel(rec, names)), ui.dim(rec.Timestamp))
		if rec.Caption != "" {
			fmt.Fprintf(out, "  %s\n", rec.Caption)
		}
		if !rec.Success && len(rec.Response) > 0 {
			fmt.Fprintln(out, responseStyle.Render(string(rec.Response)))
		}
	}
}

// recordLabel renders "Name (id)" when the page is still configured.
func recordLabel(rec history.Record, names map[string]string) string {
	return pagepost.Destination{ID: rec.PageID, Name: names[rec.PageID]}.Label()
}

func runLogsClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	which := args[0]

	if !clearYes {
		if !isTerminal(cmd.InOrStdin()) {
			return errors.New("refusing to clear without --yes when stdin is not a terminal")
		}
		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Remove all "+which+" records?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	log, err := e.openLog()
	if err != nil {
		return err
	}
	defer log.Close()

	if which == "successful" {
		err = log.ClearSuccessful(ctx)
	} else {
		err = log.ClearFailed(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared %s records.\n", newUI().ok("[OK]"), which)
	return nil
}
