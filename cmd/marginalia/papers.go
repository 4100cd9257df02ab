package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/marginalia/internal/vault"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Inspect vault paper records",
}

var papersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all papers in the vault",
	RunE:  runPapersList,
}

var papersShowCmd = &cobra.Command{
	Use:   "show <citekey>",
	Short: "Show one paper record in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runPapersShow,
}

func init() {
	papersCmd.AddCommand(papersListCmd, papersShowCmd)
	rootCmd.AddCommand(papersCmd)
}

func runPapersList(cmd *cobra.Command, args []string) error {
	v, err := vault.Open(vaultDir(cmd))
	if err != nil {
		return err
	}
	defer v.Close()

	papers, err := v.Papers().List(cmd.Context())
	if err != nil {
		return err
	}

	if len(papers) == 0 {
		fmt.Println("Vault is empty.")
		return nil
	}

	for _, p := range papers {
		year := ""
		if p.Year > 0 {
			year = fmt.Sprintf(" (%d)", p.Year)
		}
		fmt.Printf("%-20s %-12s %s%s\n", p.Citekey, p.Status, p.Title, year)
	}
	return nil
}

func runPapersShow(cmd *cobra.Command, args []string) error {
	v, err := vault.Open(vaultDir(cmd))
	if err != nil {
		return err
	}
	defer v.Close()

	p, err := v.Papers().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("paper not found: %s", args[0])
	}

	fmt.Printf("Citekey:  %s\n", p.Citekey)
	fmt.Printf("Title:    %s\n", p.Title)
	if len(p.Authors) > 0 {
		fmt.Printf("Authors:  %s\n", p.AuthorsStr())
	}
	if p.Year > 0 {
		fmt.Printf("Year:     %d\n", p.Year)
	}
	if p.Journal != "" {
		fmt.Printf("Journal:  %s\n", p.Journal)
	}
	if p.DOI != "" {
		fmt.Printf("DOI:      %s\n", p.DOI)
	}
	fmt.Printf("Status:   %s\n", p.Status)
	if p.PDFPath != "" {
		fmt.Printf("PDF:      %s\n", p.PDFPath)
	}
	if p.SearchAttempts > 0 {
		fmt.Printf("Searches: %d", p.SearchAttempts)
		if p.LastSearchError != "" {
			fmt.Printf(" (last: %s)", p.LastSearchError)
		}
		fmt.Println()
	}
	for _, link := range p.ManualLinks {
		fmt.Printf("Link:     %s\n", link)
	}
	return nil
}
