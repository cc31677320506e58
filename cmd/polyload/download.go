package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/polyload/pkg/dataset"
)

func newDownloadCmd(flags *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch the dataset into the download directory",
		Long: `Fetch and unzip the configured Kaggle dataset into download_dir. Nothing is
downloaded when the directory already holds CSV files, unless --force is given.
Credentials come from KAGGLE_USERNAME and KAGGLE_KEY or ~/.kaggle/kaggle.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			creds, err := dataset.CredentialsFromEnv()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			d := newDownloader(cfg, creds)
			if force {
				files, err := d.Download(ctx, cfg.DownloadDir, cfg.Dataset.Ref)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d files into %s\n", len(files), cfg.DownloadDir)
				return nil
			}
			downloaded, err := d.Ensure(ctx, cfg.DownloadDir, cfg.Dataset.Ref)
			if err != nil {
				return err
			}
			if downloaded {
				fmt.Fprintf(cmd.OutOrStdout(), "Download complete: %s\n", cfg.DownloadDir)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Dataset already downloaded.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Download even when CSV files are present")
	return cmd
}
