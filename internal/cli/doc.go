// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tutorchat command line.
//
// Commands:
//
//	tutorchat                 open the chat room (requires a terminal)
//	tutorchat relay           run the relay server
//	tutorchat history show    print the locally stored history
//	tutorchat history clear   delete the locally stored history
//	tutorchat history export  write the stored history as JSON or text
//	tutorchat version         print version information
//
// Every command loads configuration from ~/.tutorchat (or --config), then
// applies TUTORCHAT_* environment overrides. A .env file in the working
// directory is read first. Errors are mapped to exit codes by ExitCode.
package cli
