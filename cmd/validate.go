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
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/AlexisTrouve/vba-mcp-server/inject"
)

// validateCmd checks a VBA source file (or stdin) without touching any
// container.
var validateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Validate VBA code: character set and block balance",
	Long: `Runs the edit pipeline's pre-validation over a VBA source file, or over
stdin when no file is given. Fails with details on non-ASCII characters or
unbalanced blocks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var code []byte
		var err error
		if len(args) == 1 {
			path, pathErr := expandPath(args[0])
			if pathErr != nil {
				return pathErr
			}
			code, err = os.ReadFile(path)
		} else {
			code, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		if bad, detail := inject.DetectNonASCII(string(code)); bad {
			pterm.Error.Println("Validation failed")
			fmt.Println(detail)
			os.Exit(1)
		}
		if ok, detail := inject.CheckBlockBalance(string(code)); !ok {
			pterm.Error.Println("Validation failed")
			fmt.Println(detail)
			os.Exit(1)
		}
		pterm.Success.Println("Code is valid: ASCII only, blocks balanced")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
