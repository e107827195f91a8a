package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/catdog-api/internal/pipeline"
)

type fileResult struct {
	File string `json:"file"`
	*pipeline.Result
	Error string `json:"error,omitempty"`
}

func newClassifyCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify <image>...",
		Short: "Classify image files and print the results",
		Long:  "Classify image files and print the results. Use - to read one image from stdin.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clf, err := a.loadClassifier()
			if err != nil {
				return err
			}
			defer clf.Close()

			pl, err := pipeline.New(clf, a.pipelineOptions())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			results := make([]fileResult, 0, len(args))
			for _, path := range args {
				fr := fileResult{File: path}
				upload, err := readInput(cmd.InOrStdin(), path)
				if err == nil {
					fr.Result, err = pl.Classify(cmd.Context(), upload)
				}
				if err != nil {
					failed++
					fr.Error = err.Error()
				}
				results = append(results, fr)

				if asJSON {
					continue
				}
				if fr.Error != "" {
					fmt.Fprintf(out, "%s: error: %s\n", path, fr.Error)
					continue
				}
				note := ""
				if !fr.Reliable {
					note = " [uncertain]"
				}
				fmt.Fprintf(out, "%s: %s (%s, %s)%s\n", path, fr.Label, fr.ConfidenceText(), fr.Level, note)
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be classified", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

// readInput reads a file, or stdin for "-". Stdin has no filename, so the
// extension check is skipped.
func readInput(stdin io.Reader, path string) (pipeline.Upload, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return pipeline.Upload{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return pipeline.Upload{Data: data}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Upload{}, err
	}
	return pipeline.Upload{Filename: filepath.Base(path), Data: data}, nil
}
