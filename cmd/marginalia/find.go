package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/marginalia/internal/finder"
	"github.com/pdiddy/marginalia/internal/jobs"
	"github.com/pdiddy/marginalia/internal/vault"
	"github.com/pdiddy/marginalia/pkg/types"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultDownloadTimeout = 60 * time.Second
	defaultUserAgent       = "marginalia/0.1 (academic literature manager)"
)

var findCmd = &cobra.Command{
	Use:   "find [citekeys...]",
	Short: "Find and download open-access PDFs",
	Long: `Find runs the acquisition waterfall for each paper: arXiv, Unpaywall,
Semantic Scholar by DOI and title, then an optional local LLM fallback.
Each paper runs as a tracked job; papers with no open-access PDF get
manual search links recorded instead.`,
	RunE: runFind,
}

func init() {
	findCmd.Flags().Duration("timeout", 0, "API request timeout (default 30s)")
	findCmd.Flags().Duration("download-timeout", 0, "PDF download timeout (default 60s)")
	findCmd.Flags().String("unpaywall-email", "", "email sent to the Unpaywall API")
	findCmd.Flags().String("semantic-scholar-api-key", "", "Semantic Scholar API key")
	findCmd.Flags().Bool("llm", false, "consult the local claude CLI when APIs find nothing")

	rootCmd.AddCommand(findCmd)
}

func findConfig(cmd *cobra.Command, dir string) types.FinderConfig {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	downloadTimeout, _ := cmd.Flags().GetDuration("download-timeout")
	if downloadTimeout == 0 {
		downloadTimeout = defaultDownloadTimeout
	}
	email, _ := cmd.Flags().GetString("unpaywall-email")
	apiKey, _ := cmd.Flags().GetString("semantic-scholar-api-key")
	enableLLM, _ := cmd.Flags().GetBool("llm")

	return types.FinderConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		VaultDir:              dir,
		UnpaywallEmail:        secretDefault("unpaywall-email", email),
		SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", apiKey),
		EnableLLM:             enableLLM,
		DownloadTimeout:       downloadTimeout,
	}
}

func runFind(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more citekeys")
	}

	dir := vaultDir(cmd)
	v, err := vault.Open(dir)
	if err != nil {
		return err
	}
	defer v.Close()

	tracker := jobs.New(v.Jobs(), jobs.LogNotifier{})
	f := finder.New(findConfig(cmd, dir), v, tracker)

	ctx := cmd.Context()
	failures := 0
	for _, citekey := range args {
		job, err := tracker.Submit(ctx, types.JobFindPDF, citekey)
		if err != nil {
			fmt.Printf("SKIP  %s: %v\n", citekey, err)
			failures++
			continue
		}

		result, err := f.FindPDF(ctx, citekey, job.ID)
		if err != nil {
			fmt.Printf("ERROR %s: %v\n", citekey, err)
			failures++
			continue
		}

		if result.Success {
			fmt.Printf("OK    %s  %s (via %s)\n", citekey, result.PDFPath, result.Source)
			continue
		}

		fmt.Printf("MISS  %s: %s\n", citekey, result.Error)
		for _, link := range result.ManualLinks {
			fmt.Printf("        %s\n", link)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d paper(s) failed", failures)
	}
	return nil
}
