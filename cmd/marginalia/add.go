package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/marginalia/internal/vault"
	"github.com/pdiddy/marginalia/pkg/types"
)

var addCmd = &cobra.Command{
	Use:   "add <citekey> <title>",
	Short: "Add a paper record to the vault",
	Long: `Add inserts a bibliographic record. The citekey is permanent; authors,
year, journal, and DOI are optional flags. The paper starts in the
discovered state and picks up a PDF later through find or fetch.`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringSlice("author", nil, "author name (repeatable)")
	addCmd.Flags().Int("year", 0, "publication year")
	addCmd.Flags().String("journal", "", "journal or venue")
	addCmd.Flags().String("doi", "", "digital object identifier")
	addCmd.Flags().String("url", "", "landing page URL")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	v, err := vault.Open(vaultDir(cmd))
	if err != nil {
		return err
	}
	defer v.Close()

	paper := types.NewPaper(args[0], args[1])
	paper.Authors, _ = cmd.Flags().GetStringSlice("author")
	paper.Year, _ = cmd.Flags().GetInt("year")
	paper.Journal, _ = cmd.Flags().GetString("journal")
	paper.DOI, _ = cmd.Flags().GetString("doi")
	paper.URL, _ = cmd.Flags().GetString("url")

	if err := v.Papers().Create(cmd.Context(), paper); err != nil {
		return err
	}

	fmt.Printf("Added %s: %s\n", paper.Citekey, paper.Title)
	return nil
}
