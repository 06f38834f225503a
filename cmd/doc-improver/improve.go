// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var improveCmd = &cobra.Command{
	Use:   "improve [document.docx]",
	Short: "Improve a document in one local run",
	Long: `Improve runs the full pipeline on a local .docx file and writes the
improved document beside the input. The intermediate working directory
is temporary and removed afterwards.

Use --keep-markdown to also write the original and improved Markdown
renditions next to the output.`,
	Args: cobra.ExactArgs(1),
	RunE: runImprove,
}

func init() {
	improveCmd.Flags().String("output", "", "output path (default: <input>-improved.docx)")
	improveCmd.Flags().Bool("keep-markdown", false, "also write the original and improved Markdown")

	rootCmd.AddCommand(improveCmd)
}

func runImprove(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// One-shot runs do not share the serve store; everything lives in a
	// temporary directory that disappears with the command.
	workDir, err := os.MkdirTemp("", "doc-improver-*")
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)
	cfg.Store.BaseDir = workDir

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	orch, closeRegistry, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRegistry()

	fmt.Fprintf(os.Stderr, "Improving %s...\n", filepath.Base(input))
	result, err := orch.Process(cmd.Context(), data, filepath.Base(input))
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "-improved.docx"
	}
	if err := copyFile(result.OutputPath, output); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Improved document written to %s\n", output)

	if keep, _ := cmd.Flags().GetBool("keep-markdown"); keep {
		base := strings.TrimSuffix(output, filepath.Ext(output))
		for suffix, content := range map[string]string{
			"-original.md": result.OriginalMarkdown,
			".md":          result.ImprovedMarkdown,
		} {
			path := base + suffix
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(os.Stdout, "Markdown written to %s\n", path)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return out.Close()
}
