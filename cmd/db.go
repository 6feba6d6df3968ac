package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baack/wget2/config"
	"github.com/baack/wget2/service"
	"github.com/baack/wget2/util"
)

func (a *app) newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the wget2 directories and a default wget2.ini",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.NewQueryService(a.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			configDir := a.flags.configDir
			if configDir == "" {
				configDir = config.DefaultConfigDir
			}
			result, err := svc.Initialize(service.InitOptions{ConfigDir: configDir, Force: force})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, dir := range result.DirsCreated {
				fmt.Fprintf(w, "Directory ready: %s\n", dir)
			}
			if result.Imported > 0 {
				fmt.Fprintf(w, "Imported %d downloads into the history\n", result.Imported)
			}
			if result.ConfigWritten != "" {
				fmt.Fprintf(w, "Configuration written: %s\n", result.ConfigWritten)
			}
			for _, warn := range result.Warnings {
				fmt.Fprintf(w, "Warning: %s\n", warn)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing wget2.ini")
	return cmd
}

func (a *app) newResetDBCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Delete the download history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if !yes {
				fmt.Fprintf(w, "This will delete the download history in %s\n", a.cfg.Database.Path)
				if !util.AskYN(cmd.InOrStdin(), w, "Are you sure?", false) {
					fmt.Fprintln(w, "Cancelled")
					return nil
				}
			}

			svc, err := service.NewQueryService(a.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.ResetDatabase()
			if err != nil {
				return err
			}
			for _, f := range result.FilesRemoved {
				fmt.Fprintf(w, "Removed %s\n", f)
			}
			fmt.Fprintln(w, "Download history reset")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) newBackupDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup-db",
		Short: "Copy the download history next to the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.NewQueryService(a.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			path, err := svc.BackupDatabase()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written: %s\n", path)
			return nil
		},
	}
}

func (a *app) newImportLogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-log",
		Short: "Record the downloads of the success list in the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.NewQueryService(a.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.ImportHistory()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d downloads from %s (%d known, %d invalid)\n",
				res.Imported, res.Read, res.Path, res.Known, res.Invalid)
			return nil
		},
	}
}
