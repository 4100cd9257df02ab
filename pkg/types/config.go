// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "marginalia/0.1 (academic literature manager)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FinderConfig holds settings for the PDF acquisition waterfall.
type FinderConfig struct {
	HTTPConfig `yaml:",inline"`

	// VaultDir is the vault root; PDFs land under papers/<citekey>/.
	VaultDir string `json:"vault_dir" yaml:"vault_dir"`

	// UnpaywallEmail identifies the caller to the Unpaywall API, required
	// by its terms of use.
	UnpaywallEmail string `json:"unpaywall_email" yaml:"unpaywall_email"`

	// SemanticScholarAPIKey is an optional key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// EnableLLM controls whether the claude CLI fallback is consulted when
	// every API source comes up empty.
	EnableLLM bool `json:"enable_llm" yaml:"enable_llm"`

	// DownloadTimeout is the timeout for the PDF download itself, which is
	// typically longer than API lookups.
	DownloadTimeout time.Duration `json:"download_timeout" yaml:"download_timeout"`
}

// JobsConfig holds settings for background job tracking.
type JobsConfig struct {
	// RetainFor is the age threshold for the jobs cleanup: terminal jobs
	// older than this are deleted.
	RetainFor time.Duration `json:"retain_for" yaml:"retain_for"`
}
