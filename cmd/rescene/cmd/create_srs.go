package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/javi11/rescene/report"
	"github.com/javi11/rescene/srs"
)

func init() {
	createSRSCmd := &cobra.Command{
		Use:   "create-srs <output.srs> <sample-file>",
		Short: "Create an SRS from a media sample",
		Long: `Create an SRS that mirrors a media sample's container structure
with audio/video payload dropped, detecting the container automatically
from the sample's extension or magic bytes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			outputPath, samplePath := args[0], args[1]
			fs := afero.NewOsFs()
			rep := report.Slog{Logger: slog.Default()}

			result, err := srs.Create(fs, outputPath, samplePath, srs.CreateOptions{AppName: appName}, rep)
			if err != nil {
				return err
			}

			fmt.Printf("created %s: container=%s tracks=%d sample=%d bytes srs=%d bytes\n",
				result.OutputPath, result.ContainerType, result.TrackCount, result.SampleSize, result.SrsFileSize)
			return nil
		},
	}

	rootCmd.AddCommand(createSRSCmd)
}
