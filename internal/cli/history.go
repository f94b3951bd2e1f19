// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - `tutorchat history`, inspection of the locally stored chat.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/util"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

func newHistoryCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the chat history stored on this device",
	}
	cmd.AddCommand(
		newHistoryShowCommand(g),
		newHistoryClearCommand(g),
		newHistoryExportCommand(g),
	)
	return cmd
}

// loadHistory opens the configured backend and reads the stored history.
func loadHistory(cmd *cobra.Command, g *globals) (*localStore, string, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	local, err := openLocalStore(cfg, logging.Nop(), nil)
	if err != nil {
		return nil, "", err
	}
	if err := local.history.Load(cmd.Context()); err != nil {
		local.Close()
		return nil, "", err
	}
	return local, cfg.Storage.Backend, nil
}

// =============================================================================
// SHOW
// =============================================================================

func newHistoryShowCommand(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored messages, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return &UsageError{Message: "--limit must not be negative"}
			}
			local, backend, err := loadHistory(cmd, g)
			if err != nil {
				return NewCommandError("history show", "load", err)
			}
			defer local.Close()

			all := local.history.Messages()
			shown := all
			if limit > 0 {
				shown = all.Tail(limit)
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return NewJSONResponse("history show", HistoryData{
					Backend:  backend,
					Total:    len(all),
					Shown:    len(shown),
					Messages: shown,
				}).Write(out)
			}

			if len(all) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No stored messages."))
				return nil
			}
			fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Chat history (%d of %d, %s backend)", len(shown), len(all), backend)))
			fmt.Fprintln(out, RenderSeparator(60))
			for _, m := range shown {
				fmt.Fprintln(out, RenderLine(m))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the newest N messages (0 = all)")
	return cmd
}

// =============================================================================
// CLEAR
// =============================================================================

func newHistoryClearCommand(g *globals) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			local, _, err := loadHistory(cmd, g)
			if err != nil {
				return NewCommandError("history clear", "load", err)
			}
			defer local.Close()

			n := local.history.Len()
			if !yes {
				if !isTerminal(cmd.InOrStdin()) {
					return &UsageError{Message: "refusing to clear history without --yes when stdin is not a terminal"}
				}
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %d stored messages?", n)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := local.history.Clear(cmd.Context()); err != nil {
				return NewCommandError("history clear", "clear", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Deleted %d stored messages.", n)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// =============================================================================
// EXPORT
// =============================================================================

func newHistoryExportCommand(g *globals) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored messages as JSON or plain text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != FormatJSON && format != FormatText {
				return &UsageError{Message: fmt.Sprintf("unsupported format %q (want json or text)", format)}
			}
			local, _, err := loadHistory(cmd, g)
			if err != nil {
				return NewCommandError("history export", "load", err)
			}
			defer local.Close()

			data, err := exportHistory(local.history.Messages(), format)
			if err != nil {
				return NewCommandError("history export", "encode", err)
			}
			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := util.AtomicWriteFile(output, data, 0600); err != nil {
				return NewCommandError("history export", "write", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), SuccessStyle.Render(fmt.Sprintf("Exported %d messages to %s", local.history.Len(), output)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", FormatJSON, "output format: json or text")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// exportHistory renders h in format. JSON output is the same array the
// store persists, so it can be fed back as a history push.
func exportHistory(h model.History, format string) ([]byte, error) {
	if format == FormatJSON {
		data, err := history.Encode(h)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	var b strings.Builder
	for _, m := range h {
		b.WriteString(PlainLine(m))
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}
