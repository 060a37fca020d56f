// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/PathanWasim/AEGIS/services/engine/config"
)

var (
	configPath string
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "aegis",
		Short: "Trust-adaptive execution engine for a minimal arithmetic language",
		Long: `AEGIS runs programs in a sandboxed interpreter and promotes
repeatedly well-behaved code to an optimized execution tier. Programs
that violate security limits in the optimized tier are rolled back and
lose all accumulated trust.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			})))
			return nil
		},
	}

	runCmd = &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a program from a file, or stdin when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProgram,
	}

	batchCmd = &cobra.Command{
		Use:   "batch <file>...",
		Short: "Execute several program files in order and report aggregate results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}

	replCmd = &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the execution engine over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print trust, cache, and monitor statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(runCmd, batchCmd, replCmd, serveCmd, statusCmd)
}
