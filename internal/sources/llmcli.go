// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/marginalia/pkg/types"
)

const llmBinary = "claude"

// notFoundSentinel is the literal the prompt instructs the model to emit
// when it cannot locate a PDF.
const notFoundSentinel = "NONE"

// executor abstracts subprocess invocation for testing.
type executor interface {
	LookPath(file string) (string, error)
	Output(name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// LLMCLI searches for PDFs through a locally installed claude CLI. It is
// the lowest-confidence source, consulted last and skipped entirely when
// the binary is missing.
type LLMCLI struct {
	exec executor
}

// NewLLMCLI returns an adapter backed by the real CLI binary.
func NewLLMCLI() *LLMCLI {
	return &LLMCLI{exec: &osExecutor{}}
}

// Name returns the source identifier.
func (c *LLMCLI) Name() string { return "llm" }

// Available reports whether the CLI binary is installed and answers a
// version check.
func (c *LLMCLI) Available() bool {
	if _, err := c.exec.LookPath(llmBinary); err != nil {
		return false
	}
	_, err := c.exec.Output(llmBinary, "--version")
	return err == nil
}

// Version returns the CLI version string, or "" when unavailable.
func (c *LLMCLI) Version() string {
	out, err := c.exec.Output(llmBinary, "--version")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// LoggedIn checks login state with a trivial round-trip prompt.
func (c *LLMCLI) LoggedIn() bool {
	_, err := c.exec.Output(llmBinary, "--print", "-p", "Say hi")
	return err == nil
}

// FindPDFURL asks the CLI to locate a direct PDF URL for the paper. Only a
// response that is an http(s) URL containing ".pdf" is accepted; anything
// else, including the NONE sentinel, counts as no result.
func (c *LLMCLI) FindPDFURL(ctx context.Context, paper *types.Paper) (string, bool) {
	if !c.Available() {
		return "", false
	}
	if err := ctx.Err(); err != nil {
		return "", false
	}

	prompt := buildFindPrompt(paper)
	out, err := c.exec.Output(llmBinary, "--print", "-p", prompt)
	if err != nil {
		log.Warn().Str("source", c.Name()).Err(err).Msg("cli invocation failed")
		return "", false
	}

	response := strings.TrimSpace(string(out))
	if response == notFoundSentinel {
		return "", false
	}
	if strings.HasPrefix(response, "http") && strings.Contains(response, ".pdf") {
		return response, true
	}

	log.Debug().Str("source", c.Name()).Msg("cli returned no usable url")
	return "", false
}

func buildFindPrompt(paper *types.Paper) string {
	year := "n.d."
	if paper.Year > 0 {
		year = fmt.Sprintf("%d", paper.Year)
	}
	return fmt.Sprintf(
		"Find a direct download URL for the open-access PDF of this academic paper. "+
			"Only respond with a URL that ends in .pdf, nothing else. "+
			"If you cannot find one, respond with exactly '%s'.\n\n"+
			"Title: %s\nAuthors: %s\nYear: %s\nDOI: %s",
		notFoundSentinel, paper.Title, paper.AuthorsStr(), year, paper.DOI,
	)
}
