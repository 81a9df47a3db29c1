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
	"io"
	"os"
	"slices"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/blacktop/pagepost/internal/pagepost"
	"github.com/blacktop/pagepost/internal/pagepost/graph"
	"github.com/blacktop/pagepost/internal/pagepost/publish"
)

var (
	messageFlag string
	imagePaths  []string
	pageFlags   []string
	dryRun      bool
)

func newPostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post [caption]",
		Short: "Publish a caption and images to the selected pages",
		Long: "post uploads every image to each selected page and creates one feed entry there. " +
			"The caption comes from the argument, --message, or piped stdin.",
		RunE: runPost,
		Example: `  pagepost post "Hello everyone" --image ./a.png --image ./b.jpg
  pagepost post --page 1234567890 --page "Second Page" -m "Only these two"
  echo "From a pipe" | pagepost post`,
	}

	cmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Caption text")
	cmd.Flags().StringArrayVar(&imagePaths, "image", nil, "Image to attach (repeatable, order is kept)")
	cmd.Flags().StringSliceVar(&pageFlags, "page", []string{"all"}, "Page id or name to publish to (repeatable, or all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print actions without publishing")
	cmd.Flags().SortFlags = false

	return cmd
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	caption, err := resolveMessage(cmd, args, len(imagePaths) > 0)
	if err != nil {
		return err
	}

	images, err := resolveImages(imagePaths)
	if err != nil {
		return err
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}

	all, err := e.pages.List(ctx)
	if err != nil {
		return err
	}
	ids, err := selectPages(all, pageFlags)
	if err != nil {
		return err
	}

	req := pagepost.Request{Caption: caption, Images: images, DestinationIDs: ids}
	if dryRun {
		return dryRunReport(cmd.OutOrStdout(), all, req)
	}

	log, err := e.openLog()
	if err != nil {
		return err
	}
	defer log.Close()

	client := graph.New(graph.Config{
		Endpoint:  e.cfg.Graph.Endpoint,
		Timeout:   e.cfg.Graph.RequestTimeout,
		UserAgent: e.cfg.Graph.UserAgent,
	})
	publisher, err := publish.New(publish.Config{
		Pages:           e.pages,
		Uploader:        client,
		Feed:            client,
		Log:             log,
		TimestampLayout: e.cfg.Display.TimestampLayout,
		Observer:        newProgressObserver(cmd.ErrOrStderr()),
	})
	if err != nil {
		return err
	}

	result, err := publisher.Publish(ctx, req)
	return summarize(cmd.OutOrStdout(), result, err)
}

// resolveMessage picks the caption from args, --message or piped stdin. An
// empty caption is accepted when images carry the post.
func resolveMessage(cmd *cobra.Command, args []string, allowEmpty bool) (string, error) {
	var message string

	if messageFlag != "" {
		message = messageFlag
	}

	if len(args) > 0 {
		if message != "" {
			return "", errors.New("provide the caption either as an argument or with --message, not both")
		}
		message = strings.Join(args, " ")
	}

	if message != "" {
		return strings.TrimSpace(message), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok {
		info, err := file.Stat()
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if (info.Mode() & os.ModeCharDevice) == 0 {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return "", fmt.Errorf("read stdin: %w", err)
			}
			message = strings.TrimSpace(string(data))
		}
	} else if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		message = strings.TrimSpace(string(data))
	}

	if message == "" && !allowEmpty {
		return "", errors.New("a caption or at least one --image is required")
	}

	return message, nil
}

func resolveImages(paths []string) ([]pagepost.ImageAsset, error) {
	images := make([]pagepost.ImageAsset, 0, len(paths))
	var errs []error
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("image %s: %w", p, err))
			continue
		}
		if info.IsDir() {
			errs = append(errs, fmt.Errorf("image %s: is a directory", p))
			continue
		}
		images = append(images, pagepost.ImageAsset{URI: p})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return images, nil
}

// selectPages maps --page values to ids in stored order. "all" selects
// every page; otherwise each value must match a page id or name.
func selectPages(all []pagepost.Destination, values []string) ([]string, error) {
	if len(all) == 0 {
		return nil, errors.New("no pages configured, add one with: pagepost pages add")
	}

	selected := make(map[string]struct{}, len(values))
	var errs []error
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.EqualFold(raw, "all") {
			for _, d := range all {
				selected[d.ID] = struct{}{}
			}
			continue
		}
		idx := slices.IndexFunc(all, func(d pagepost.Destination) bool {
			return d.ID == raw || strings.EqualFold(d.Name, raw)
		})
		if idx < 0 {
			errs = append(errs, fmt.Errorf("unknown page %q", raw))
			continue
		}
		selected[all[idx].ID] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	ids := make([]string, 0, len(selected))
	for _, d := range all {
		if _, ok := selected[d.ID]; ok {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

func dryRunReport(out io.Writer, all []pagepost.Destination, req pagepost.Request) error {
	if req.Empty() {
		return &pagepost.ValidationError{Reason: pagepost.ErrEmptyRequest}
	}
	for _, d := range all {
		if slices.Contains(req.DestinationIDs, d.ID) {
			fmt.Fprintf(out, "[dry-run] would post to %s: %q\n", d.Label(), req.Caption)
		}
	}
	for i, img := range req.Images {
		fmt.Fprintf(out, "[dry-run] image %d: %s\n", i+1, img.URI)
	}
	return nil
}

// summarize prints the single summary line for a run and returns
// errReported unless every page succeeded.
func summarize(out io.Writer, result pagepost.Result, err error) error {
	ui := newUI()

	if err != nil {
		msg := err.Error()
		var verr *pagepost.ValidationError
		switch {
		case errors.As(err, &verr):
			msg = verr.Reason.Error()
		case result.Message != "":
			msg = result.Message
		}
		fmt.Fprintf(out, "%s %s\n", ui.err("Error:"), msg)
		return errReported
	}

	switch result.Kind {
	case pagepost.AllSucceeded:
		fmt.Fprintln(out, ui.ok("Post published to all selected pages."))
		return nil
	case pagepost.PartialFailure:
		fmt.Fprintln(out, ui.err("Post failed for page(s): "+strings.Join(result.FailingNames, ", ")))
		return errReported
	default:
		fmt.Fprintf(out, "%s %s\n", ui.err("Error:"), result.Message)
		return errReported
	}
}

// progressObserver advances a progress bar as pages finish.
type progressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) DestinationStarted(dest pagepost.Destination, index, total int) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetWidth(18),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	p.bar.Describe("Publishing to " + dest.Label())
}

func (p *progressObserver) DestinationFinished(dest pagepost.Destination, outcome pagepost.Outcome) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}
