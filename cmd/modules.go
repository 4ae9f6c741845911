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
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// modulesCmd lists modules as a table.
var modulesCmd = &cobra.Command{
	Use:   "modules FILE",
	Short: "List VBA modules in an Office file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := expandPath(args[0])
		if err != nil {
			return err
		}
		project, err := vbaproject.Open(file)
		if err != nil {
			return err
		}
		if len(project.Modules) == 0 {
			pterm.Info.Println("No VBA modules found")
			return nil
		}
		rows := pterm.TableData{{"Module", "Kind", "Lines"}}
		for _, m := range project.Modules {
			rows = append(rows, []string{m.Name, string(m.Kind), fmt.Sprintf("%d", m.LineCount)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
