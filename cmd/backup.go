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

	"github.com/AlexisTrouve/vba-mcp-server/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup ACTION FILE [BACKUP_ID]",
	Short: "Create, list, restore, or delete backups of an Office file",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := args[0]
		file, err := expandPath(args[1])
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 3 {
			id = args[2]
		}

		mgr := backup.NewOSManager()
		switch action {
		case "create":
			entry, path, err := mgr.Create(file)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Backup %s created at %s", entry.ID, path)
		case "list":
			entries, err := mgr.List(file)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				pterm.Info.Println("No backups found")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %s  %d bytes\n", e.ID, e.Created, e.OriginalSize)
			}
		case "restore":
			if id == "" {
				return fmt.Errorf("restore requires a BACKUP_ID")
			}
			entry, err := mgr.Restore(file, id)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Restored %s from backup %s (%s)", file, entry.ID, entry.Created)
		case "delete":
			if id == "" {
				return fmt.Errorf("delete requires a BACKUP_ID")
			}
			if err := mgr.Delete(file, id); err != nil {
				return err
			}
			pterm.Success.Printfln("Backup %s deleted", id)
		default:
			return fmt.Errorf("unknown action %q (use create, list, restore, delete)", action)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
