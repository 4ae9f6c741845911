/*
Copyright © 2025 Alexis Trouvé

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AlexisTrouve/vba-mcp-server/backup"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	MCP "github.com/AlexisTrouve/vba-mcp-server/mcp"
	"github.com/AlexisTrouve/vba-mcp-server/session"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Launch the VBA MCP server on stdio",
	Long: `Launch a Model Context Protocol (MCP) server exposing VBA tooling to AI
systems over stdio.

Tools provided:
- Container decoding: extract_vba, list_modules, analyze_structure, refactor_vba
- Editing with rollback: inject_vba, validate_vba_code, backup_vba, compile_vba
- Interactive automation: open_in_office, run_macro, list_macros,
  get_worksheet_data, set_worksheet_data, structured-table operations
- Database operations: list_access_tables, list_access_queries,
  run_access_query, forms management

Read-only tools work everywhere; automation tools need Windows with
Microsoft Office installed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Everything chatty goes to stderr; stdout belongs to the MCP
		// stdio transport.
		logging.EnterMCPMode()

		sessions := session.NewManager(session.Options{
			Timeout:         viper.GetDuration("session.timeout"),
			CleanupInterval: viper.GetDuration("session.cleanupInterval"),
			Visible:         viper.GetBool("session.visible"),
		})

		server, err := MCP.NewServer(sessions, backup.NewOSManager())
		if err != nil {
			return err
		}
		return server.Run(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().Bool("visible", false, "open host applications visibly")
	viper.BindPFlag("session.visible", mcpCmd.Flags().Lookup("visible"))
	rootCmd.AddCommand(mcpCmd)
}
