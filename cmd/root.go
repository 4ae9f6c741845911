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
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vba-mcp-server",
	Short: "Extract, analyze, and edit VBA projects in Office files",
	Long: `Works with the macro projects embedded in Microsoft Office containers
(.xlsm, .xlsb, .docm, .pptm, .accdb): extracts and analyzes module source
directly from the file format, and, where Office automation is available,
injects code, runs macros, and drives worksheet and database data.

Run 'vba-mcp-server mcp' to expose every operation as MCP tools over stdio.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// expandPath expands ~, handles relative and absolute paths
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			path = home
		} else if strings.HasPrefix(path, "~/") {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Abs(path)
}

func initConfig() {
	viper.SetDefault("session.timeout", "1h")
	viper.SetDefault("session.cleanupInterval", "5m")
	viper.SetDefault("analyze.topOffenders", 15)

	cfgFile := viper.GetString("configFile")
	if cfgFile != "" {
		expanded, err := expandPath(cfgFile)
		cobra.CheckErr(err)
		viper.SetConfigFile(expanded)
	} else {
		viper.SetConfigName("vba-mcp")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Join(".", ".config"))
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "vba-mcp-server"))
	}
	if err := viper.ReadInConfig(); err == nil {
		pterm.Debug.Println("Using config file: ", viper.ConfigFileUsed())
	}

	viper.SetEnvPrefix("VBA_MCP")
	viper.AutomaticEnv()

	if viper.GetBool("verbose") {
		logging.SetDebugEnabled(true)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "config file (default is .config/vba-mcp.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging output")
	viper.BindPFlag("configFile", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
