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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/PathanWasim/AEGIS/services/engine/pipeline"
)

const historyFile = ".aegis_history"

// runRepl reads programs interactively. Statements accumulate in a
// buffer; an empty line executes the buffer as one program. Re-running
// the same program builds its trust the same way repeated run commands
// would.
func runRepl(cmd *cobra.Command, args []string) error {
	pipe, err := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer pipe.Close()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Println("aegis repl. Statements buffer until an empty line; :help for commands.")

	var buffer []string
	for {
		prompt := ">>> "
		if len(buffer) > 0 {
			prompt = "... "
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			buffer = buffer[:0]
			continue
		}
		if err != nil {
			break
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, ":"):
			ln.AppendHistory(trimmed)
			if handleReplCommand(pipe, trimmed) {
				saveHistory(ln, histPath)
				return nil
			}
		case trimmed == "":
			if len(buffer) == 0 {
				continue
			}
			source := strings.Join(buffer, "\n")
			buffer = buffer[:0]
			runReplProgram(pipe, source)
		default:
			ln.AppendHistory(line)
			buffer = append(buffer, line)
		}
	}

	saveHistory(ln, histPath)
	return nil
}

func runReplProgram(pipe *pipeline.Pipeline, source string) {
	result := pipe.Execute(source)
	for _, line := range result.Output {
		fmt.Println(line)
	}
	if !result.Success {
		fmt.Printf("error (%s): %s\n", result.ErrorCategory, result.ErrorMessage)
	}
	fmt.Printf("[%s | trust %.2f (%s) | %.6fs]\n",
		result.ExecutionMode, result.TrustScore, result.TrustLevel, result.ExecutionTime)
}

func handleReplCommand(pipe *pipeline.Pipeline, command string) (exit bool) {
	fields := strings.Fields(command)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Println(`commands:
  :help            show this help
  :status          print engine statistics
  :cleanup         drop stale trust records and expired cache entries
  :quit            leave the repl`)
	case ":status":
		out, err := json.MarshalIndent(pipe.Status(), "", "  ")
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		fmt.Println(string(out))
	case ":cleanup":
		stale, expired := pipe.Cleanup()
		fmt.Printf("removed %d stale trust records, %d expired cache entries\n", stale, expired)
	default:
		fmt.Printf("unknown command %s, try :help\n", fields[0])
	}
	return false
}

func saveHistory(ln *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	ln.WriteHistory(f)
}
