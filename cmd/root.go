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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blacktop/pagepost/internal/config"
	"github.com/blacktop/pagepost/internal/history"
	"github.com/blacktop/pagepost/internal/logutil"
	"github.com/blacktop/pagepost/internal/pages"
)

var (
	configPath string
	dataDir    string
	verbose    bool
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("reported")

// Execute runs the root command.
func Execute() error {
	err := newRootCommand().Execute()
	if err != nil && !errors.Is(err, errReported) {
		logutil.Errorf("%v", err)
	}
	return err
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagepost",
		Short: "Publish a post to several pages at once",
		Long: "pagepost uploads images and publishes the same caption to every selected page, " +
			"recording one log entry per page.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logutil.SetVerbose(verbose)
		},
		Example: `  pagepost pages add --name "My Page" --id 1234567890
  pagepost post "Launch day!" --image ./banner.png
  pagepost logs --failed`,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding settings and logs")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newPostCommand())
	cmd.AddCommand(newLogsCommand())
	cmd.AddCommand(newPagesCommand())
	cmd.AddCommand(newAccountCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newCompletionCommand())

	return cmd
}

// env is the loaded configuration and the stores rooted at its data dir.
type env struct {
	cfg   *config.Config
	pages *pages.Store
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	logutil.Debugf("using data directory %s", cfg.Data.Dir)

	return &env{cfg: cfg, pages: pages.New(cfg.Data.Dir)}, nil
}

func (e *env) openLog() (history.Log, error) {
	return history.Open(e.cfg.Data.LogBackend, e.cfg.Data.Dir)
}

// pageNames maps page ids to names for display.
func (e *env) pageNames(ctx context.Context) map[string]string {
	all, err := e.pages.List(ctx)
	if err != nil {
		logutil.Warnf("could not read pages: %v", err)
		return nil
	}
	names := make(map[string]string, len(all))
	for _, d := range all {
		names[d.ID] = d.Name
	}
	return names
}
