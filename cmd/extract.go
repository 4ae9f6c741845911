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

	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// extractCmd prints module source recovered straight from the container.
var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Extract VBA source from an Office file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := expandPath(args[0])
		if err != nil {
			return err
		}
		moduleName, _ := cmd.Flags().GetString("module")

		project, err := vbaproject.Open(file)
		if err != nil {
			return err
		}
		modules := project.Modules
		if moduleName != "" {
			m, ok := project.Module(moduleName)
			if !ok {
				return &vbaerr.ModuleNotFoundError{Name: moduleName, Available: project.ModuleNames()}
			}
			modules = []vbaproject.Module{*m}
		}
		if len(modules) == 0 {
			pterm.Info.Println("No VBA code found")
			return nil
		}
		for _, m := range modules {
			pterm.DefaultSection.Printfln("%s (%s, %d lines)", m.Name, m.Kind, m.LineCount)
			fmt.Println(m.Code)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringP("module", "m", "", "extract only the named module")
	rootCmd.AddCommand(extractCmd)
}
