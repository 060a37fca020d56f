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
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/PathanWasim/AEGIS/services/engine/pipeline"
)

func runProgram(cmd *cobra.Command, args []string) error {
	source, err := readSource(args)
	if err != nil {
		return err
	}

	pipe, err := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer pipe.Close()

	result := pipe.Execute(source)
	for _, line := range result.Output {
		fmt.Println(line)
	}
	slog.Debug("execution finished",
		"mode", result.ExecutionMode,
		"trust_score", result.TrustScore,
		"trust_level", result.TrustLevel,
		"execution_time", result.ExecutionTime)

	if !result.Success {
		return fmt.Errorf("%s error: %s", result.ErrorCategory, result.ErrorMessage)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	sources := make([]string, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		sources = append(sources, string(data))
	}

	pipe, err := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer pipe.Close()

	batch := pipe.ExecuteBatch(sources)
	for i, res := range batch.Results {
		fmt.Printf("--- %s (%s, %s) ---\n", args[i], res.ExecutionMode, statusWord(res.Success))
		for _, line := range res.Output {
			fmt.Println(line)
		}
		if !res.Success {
			fmt.Printf("error: %s\n", res.ErrorMessage)
		}
	}
	fmt.Printf("\n%d/%d succeeded (%.0f%%) in %.4fs\n",
		batch.Succeeded, batch.Total, batch.SuccessRate*100, batch.TotalTime)
	if batch.Failed > 0 {
		return fmt.Errorf("%d program(s) failed", batch.Failed)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	pipe, err := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer pipe.Close()

	status := pipe.Status()
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func readSource(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func statusWord(success bool) string {
	if success {
		return "ok"
	}
	return "failed"
}
