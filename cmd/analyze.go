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
	"github.com/spf13/viper"

	"github.com/AlexisTrouve/vba-mcp-server/analyze"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// analyzeCmd prints project metrics and the top-offenders view.
var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Analyze VBA structure and complexity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := expandPath(args[0])
		if err != nil {
			return err
		}
		moduleName, _ := cmd.Flags().GetString("module")
		filter, _ := cmd.Flags().GetString("suggest")

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
			pterm.Info.Println("No VBA code to analyze")
			return nil
		}

		report := analyze.Analyze(modules, viper.GetInt("analyze.topOffenders"))
		pterm.DefaultSection.Println("Metrics")
		fmt.Printf("Modules: %d  Procedures: %d  Lines: %d\n",
			report.Metrics.TotalModules, report.Metrics.TotalProcedures, report.Metrics.TotalLines)
		fmt.Printf("Mean complexity: %.1f  Max: %d  Quality: %s\n",
			report.Metrics.MeanComplexity, report.Metrics.MaxComplexity, report.Metrics.Quality)

		if len(report.TopOffenders) > 0 {
			pterm.DefaultSection.Println("Top offenders")
			for _, p := range report.TopOffenders {
				fmt.Printf("%3d  %s.%s (%s)\n", p.Complexity, p.Module, p.Name, p.Kind)
			}
		}

		if filter != "" {
			suggestions := analyze.Advise(modules, filter)
			pterm.DefaultSection.Println("Suggestions")
			if len(suggestions) == 0 {
				pterm.Success.Println("No refactoring suggestions - code looks good!")
			}
			for _, s := range suggestions {
				fmt.Printf("[%s] %s.%s: %s\n", s.Severity, s.Module, s.Location, s.Message)
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringP("module", "m", "", "analyze only the named module")
	analyzeCmd.Flags().StringP("suggest", "s", "", "also print refactoring suggestions (all, complexity, naming, structure)")
	rootCmd.AddCommand(analyzeCmd)
}
