// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return NewJSONResponse("version", data).Write(out)
			}
			fmt.Fprintln(out, TitleStyle.Render("tutorchat "+data.Version))
			fmt.Fprintln(out, LabelStyle.Render("Commit:")+data.GitCommit)
			fmt.Fprintln(out, LabelStyle.Render("Built:")+data.BuildDate)
			fmt.Fprintln(out, LabelStyle.Render("Go:")+data.GoVersion)
			fmt.Fprintln(out, LabelStyle.Render("Platform:")+data.Platform)
			return nil
		},
	}
}
