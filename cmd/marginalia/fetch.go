package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/marginalia/internal/finder"
	"github.com/pdiddy/marginalia/internal/jobs"
	"github.com/pdiddy/marginalia/internal/vault"
	"github.com/pdiddy/marginalia/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <citekey> <url>",
	Short: "Download a PDF from a known URL",
	Long: `Fetch downloads the given URL for a paper that already has a known PDF
location. The payload is validated the same way find validates its
candidates: paywall pages and non-PDF responses are rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Duration("timeout", 0, "API request timeout (default 30s)")
	fetchCmd.Flags().Duration("download-timeout", 0, "PDF download timeout (default 60s)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	citekey, pdfURL := args[0], args[1]

	dir := vaultDir(cmd)
	v, err := vault.Open(dir)
	if err != nil {
		return err
	}
	defer v.Close()

	tracker := jobs.New(v.Jobs(), jobs.LogNotifier{})
	f := finder.New(findConfig(cmd, dir), v, tracker)

	ctx := cmd.Context()
	job, err := tracker.Submit(ctx, types.JobDownloadPDF, citekey)
	if err != nil {
		return err
	}

	result, err := f.Fetch(ctx, citekey, pdfURL, job.ID)
	if err != nil {
		return err
	}

	fmt.Printf("OK    %s  %s\n", citekey, result.PDFPath)
	return nil
}
