package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/javi11/rescene/report"
	"github.com/javi11/rescene/srr"
)

func init() {
	var (
		hashType     string
		originalRars []string
		verifyHashes []string
	)

	reconstructCmd := &cobra.Command{
		Use:   "reconstruct <srr-file> <input-dir> <output-dir>",
		Short: "Reconstruct a RAR volume set from an SRR and matching source files",
		Args:  cobra.ExactArgs(3),
		RunE: func(c *cobra.Command, args []string) error {
			srrPath, inputDir, outputDir := args[0], args[1], args[2]
			fs := afero.NewOsFs()
			rep := report.Slog{Logger: slog.Default()}
			cancel := cancelOnInterrupt()

			ht := srr.HashCRC32
			switch hashType {
			case "crc32", "":
				ht = srr.HashCRC32
			case "sha1":
				ht = srr.HashSHA1
			default:
				return fmt.Errorf("unknown --hash-type %q (want crc32 or sha1)", hashType)
			}

			hashes := make(map[string]struct{}, len(verifyHashes))
			for _, h := range verifyHashes {
				hashes[strings.ToLower(h)] = struct{}{}
			}

			matched, err := srr.Reconstruct(fs, srrPath, inputDir, outputDir, originalRars, hashes, ht, rep, cancel)
			if err != nil {
				return err
			}

			if matched {
				fmt.Printf("reconstructed %s into %s: all volumes verified\n", srrPath, outputDir)
				return nil
			}
			return fmt.Errorf("reconstructed %s into %s but one or more volumes failed verification", srrPath, outputDir)
		},
	}

	reconstructCmd.Flags().StringVar(&hashType, "hash-type", "crc32", "digest used to verify completed volumes (crc32 or sha1)")
	reconstructCmd.Flags().StringArrayVar(&originalRars, "original-name", nil, "original volume filename, positionally overriding the name recorded in the SRR (repeatable)")
	reconstructCmd.Flags().StringArrayVar(&verifyHashes, "verify-hash", nil, "expected digest (hex, crc32 or sha1 per --hash-type) a completed volume must match (repeatable); omit to skip verification")

	rootCmd.AddCommand(reconstructCmd)
}
