// Package cli implements resumectl, an offline tool for editing resume
// documents with the same patch engine and validation as the API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"resume-editor/internal/resumes"
)

type rootOptions struct {
	cfgFile  string
	settings Settings
}

// NewRootCmd builds the command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "resumectl",
		Short:         "Edit and inspect resume documents",
		Long:          `resumectl applies path patches and merge patches to resume documents stored as JSON or YAML, and reports derived statistics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(opts.cfgFile)
			if err != nil {
				return err
			}
			opts.settings = s
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.resumectl/config.yaml)")
	root.AddCommand(
		newApplyCmd(opts),
		newMergeCmd(opts),
		newDiffCmd(opts),
		newStatsCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

// documentPath falls back to the configured default file.
func (o *rootOptions) documentPath(flag string) string {
	if flag != "" {
		return flag
	}
	return o.settings.File
}

// Execute is the entry point called by main.main().
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// readDocument loads a resume from a .json, .yaml or .yml file. "-" reads
// JSON from stdin.
func readDocument(cmd *cobra.Command, path string) (resumes.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	doc := resumes.Document{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		normalized, err := normalizeYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		doc = resumes.Document(normalized.(map[string]any))
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return doc, nil
}

// normalizeYAML round-trips YAML values through JSON so numbers and nested
// maps have the same shapes as documents loaded from the API.
func normalizeYAML(v map[string]any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeDocument prints the document, or writes it to outPath in the format
// implied by its extension.
func writeDocument(cmd *cobra.Command, doc resumes.Document, outPath string) error {
	if outPath == "" {
		return writeJSON(cmd, doc)
	}
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(map[string]any(doc))
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
