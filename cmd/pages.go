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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktop/pagepost/internal/pagepost"
	"github.com/blacktop/pagepost/internal/pages"
)

var (
	pageName  string
	pageID    string
	pageToken string
)

func newPagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage the pages posts are published to",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			all, err := e.pages.List(cmd.Context())
			if err != nil {
				return err
			}
			ui := newUI()
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, ui.dim("No pages configured."))
				return nil
			}
			for i, d := range all {
				fmt.Fprintf(out, "%s %s %s\n", ui.title(fmt.Sprintf("%d.", i+1)), d.Label(), ui.dim(pages.Mask(d.Credential)))
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			d := pagepost.Destination{ID: pageID, Name: pageName, Credential: pageToken}
			if err := fillPage(cmd, &d); err != nil {
				return err
			}
			if err := e.pages.Add(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s\n", newUI().ok("[OK]"), d.Label())
			return nil
		},
	}
	addPageFlags(add)

	edit := &cobra.Command{
		Use:   "edit <id|position>",
		Short: "Change a page's name, id or access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			all, err := e.pages.List(ctx)
			if err != nil {
				return err
			}
			idx, err := pageIndex(all, args[0])
			if err != nil {
				return err
			}

			d := all[idx]
			if cmd.Flags().Changed("name") {
				d.Name = pageName
			}
			if cmd.Flags().Changed("id") {
				d.ID = pageID
			}
			if cmd.Flags().Changed("token") {
				d.Credential = pageToken
			}
			if err := e.pages.Update(ctx, idx, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %s\n", newUI().ok("[OK]"), d.Label())
			return nil
		},
	}
	addPageFlags(edit)

	remove := &cobra.Command{
		Use:     "remove <id|position>",
		Aliases: []string{"rm"},
		Short:   "Remove a page",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			all, err := e.pages.List(ctx)
			if err != nil {
				return err
			}
			idx, err := pageIndex(all, args[0])
			if err != nil {
				return err
			}
			if err := e.pages.Remove(ctx, idx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", newUI().ok("[OK]"), all[idx].Label())
			return nil
		},
	}

	cmd.AddCommand(list, add, edit, remove)
	return cmd
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pageName, "name", "", "Page name")
	cmd.Flags().StringVar(&pageID, "id", "", "Page id")
	cmd.Flags().StringVar(&pageToken, "token", "", "Page access token (prompted when omitted)")
}

// fillPage prompts for whatever the flags left empty.
func fillPage(cmd *cobra.Command, d *pagepost.Destination) error {
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	var err error
	if strings.TrimSpace(d.Name) == "" {
		if d.Name, err = prompt(in, out, "Page name", ""); err != nil {
			return err
		}
	}
	if strings.TrimSpace(d.ID) == "" {
		if d.ID, err = prompt(in, out, "Page id", ""); err != nil {
			return err
		}
	}
	if strings.TrimSpace(d.Credential) == "" {
		if d.Credential, err = promptSecret(in, out, "Access token"); err != nil {
			return err
		}
	}
	return nil
}

// pageIndex resolves a page id or a 1-based position.
func pageIndex(all []pagepost.Destination, ref string) (int, error) {
	for i, d := range all {
		if d.ID == ref {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(all) {
		return n - 1, nil
	}
	if len(all) == 0 {
		return -1, errors.New("no pages configured")
	}
	return -1, fmt.Errorf("%w: %s", pages.ErrNotFound, ref)
}
