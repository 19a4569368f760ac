// Copyright 2021 Andrew Werner.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ajwerner/treeproj/internal/browse"
	"github.com/ajwerner/treeproj/internal/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	logLevel string
	metrics  bool

	logger   *slog.Logger
	registry *prometheus.Registry
}

type viewFlags struct {
	sort   string
	order  string
	filter string
	root   string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "treeproj",
		Short:         "Sort and filter projections over a tree document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			g.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			if g.metrics {
				g.registry = prometheus.NewRegistry()
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if g.registry == nil {
				return nil
			}
			return dumpMetrics(cmd.ErrOrStderr(), g.registry)
		},
	}
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&g.metrics, "metrics", false, "print projection metrics to stderr on exit")

	rootCmd.AddCommand(newShowCmd(g), newBrowseCmd(g))
	return rootCmd
}

func addViewFlags(cmd *cobra.Command, v *viewFlags) {
	cmd.Flags().StringVar(&v.sort, "sort", "", "column to sort by, overriding the document")
	cmd.Flags().StringVar(&v.order, "order", "", "sort order: ascending or descending")
	cmd.Flags().StringVar(&v.filter, "filter", "", "row filter expression, for example 'size > 100 && !hidden'")
	cmd.Flags().StringVar(&v.root, "root", "", "colon separated path of the row to present the descendants of")
}

// loadStack loads the document at path, applies the flags which were set
// and builds the projection stack over it.
func loadStack(cmd *cobra.Command, g *globalOptions, path string, v *viewFlags) (*browse.Stack, error) {
	doc, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("sort") {
		doc.View.Sort = v.sort
	}
	if flags.Changed("order") {
		doc.View.Order = v.order
	}
	if flags.Changed("filter") {
		doc.View.Filter = v.filter
	}
	if flags.Changed("root") {
		doc.View.Root = v.root
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	g.logger.Debug("loaded document", "path", path, "columns", len(doc.Columns), "rows", len(doc.Rows))

	opts := browse.Options{Logger: g.logger}
	if g.registry != nil {
		opts.Registerer = g.registry
	}
	return browse.NewStack(doc, opts)
}

func newShowCmd(g *globalOptions) *cobra.Command {
	v := &viewFlags{}
	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print the projected rows of a tree document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStack(cmd, g, args[0], v)
			if err != nil {
				return err
			}
			defer s.Close()
			if _, err := io.WriteString(cmd.OutOrStdout(), browse.Render(s)); err != nil {
				return err
			}
			g.logger.Info("rendered", "status", s.Status())
			return nil
		},
	}
	addViewFlags(cmd, v)
	return cmd
}

func newBrowseCmd(g *globalOptions) *cobra.Command {
	v := &viewFlags{}
	cmd := &cobra.Command{
		Use:   "browse <file>",
		Short: "Browse a tree document interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStack(cmd, g, args[0], v)
			if err != nil {
				return err
			}
			defer s.Close()
			p := tea.NewProgram(browse.InitialModel(s), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	addViewFlags(cmd, v)
	return cmd
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
