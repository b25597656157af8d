// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/n7tools/finalmission/services/mission/config"
)

// cfg is the loaded configuration, available to every command once
// PersistentPreRun has completed.
var cfg config.Config

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	// Usage errors exit with code 2, distinct from run failures.
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "finalmission: %v\n", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				log.Fatalf("Error locating the config file: %v", err)
			}
		}
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		cfg = loaded
	}
}
