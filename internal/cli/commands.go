package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"resume-editor/internal/docpatch"
	"resume-editor/internal/resumes"
)

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var (
		file string
		sets []string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply dotted-path patches to a resume",
		Example: `  resumectl apply -f resume.json --set experience.0.company=Acme --set 'skills=["Go","SQL"]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, opts.documentPath(file))
			if err != nil {
				return err
			}
			patches, err := parseSets(sets)
			if err != nil {
				return err
			}
			next, err := docpatch.ApplyAll(doc, patches...)
			if err != nil {
				return err
			}
			result := resumes.Document(next)
			if err := result.Validate(); err != nil {
				return err
			}
			return writeDocument(cmd, result, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "resume document (.json, .yaml, or - for stdin)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "path=value patch; value is parsed as JSON when possible")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the result to this file instead of stdout")
	return cmd
}

// parseSets turns path=value pairs into patches. Values that are not valid
// JSON are taken as plain strings.
func parseSets(sets []string) ([]docpatch.Patch, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("at least one --set is required")
	}
	patches := make([]docpatch.Patch, 0, len(sets))
	for _, s := range sets {
		path, raw, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("invalid --set %q: want path=value", s)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		patches = append(patches, docpatch.Patch{Path: strings.TrimSpace(path), Value: value})
	}
	return patches, nil
}

func newMergeCmd(opts *rootOptions) *cobra.Command {
	var (
		file  string
		patch string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Apply an RFC 7386 merge patch to a resume",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, opts.documentPath(file))
			if err != nil {
				return err
			}
			if patch == "" {
				return fmt.Errorf("--patch is required")
			}
			raw, err := os.ReadFile(patch)
			if err != nil {
				return err
			}
			next, err := docpatch.Merge(doc, raw)
			if err != nil {
				return err
			}
			result := resumes.Document(next)
			if err := result.Validate(); err != nil {
				return err
			}
			return writeDocument(cmd, result, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "resume document (.json, .yaml, or - for stdin)")
	cmd.Flags().StringVarP(&patch, "patch", "p", "", "merge patch JSON file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the result to this file instead of stdout")
	return cmd
}

func newDiffCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the merge patch that turns one resume into another",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readDocument(cmd, opts.documentPath(from))
			if err != nil {
				return err
			}
			b, err := readDocument(cmd, to)
			if err != nil {
				return err
			}
			patch, err := docpatch.Diff(a, b)
			if err != nil {
				return err
			}
			var pretty any
			if err := json.Unmarshal(patch, &pretty); err != nil {
				return err
			}
			return writeJSON(cmd, pretty)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "original resume document")
	cmd.Flags().StringVar(&to, "to", "", "updated resume document")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		file string
		asOf string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report experience totals and section counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, opts.documentPath(file))
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if asOf == "" {
				asOf = opts.settings.AsOf
			}
			if asOf != "" {
				parsed, ok := resumes.ParseMonth(asOf)
				if !ok {
					return fmt.Errorf("invalid --as-of %q", asOf)
				}
				now = parsed
			}
			return writeJSON(cmd, resumes.ComputeStats(doc, now))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "resume document (.json, .yaml, or - for stdin)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "compute ongoing positions up to this month (default now)")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a resume against the document schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, opts.documentPath(file))
			if err != nil {
				return err
			}
			if err := doc.Validate(); err != nil {
				return err
			}
			if _, err := doc.Decode(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "resume document (.json, .yaml, or - for stdin)")
	return cmd
}
