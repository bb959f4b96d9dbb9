package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/bulk"
	"github.com/lherron/ghl2hs/internal/cli/appctx"
	"github.com/lherron/ghl2hs/internal/domain"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Load source documents into the staging store",
}

var stageImportCmd = &cobra.Command{
	Use:   "import --entity <entity> <file.json|file.jsonl|->...",
	Short: "Import a JSON array or JSON lines export into a staging collection",
	Long: `Import reads a GoHighLevel export and upserts every object into the
staging collection of the given entity. A .json file must hold an array of
objects (or an object wrapping one under the entity name); any other file is
read as one JSON object per line. Use - to read from stdin.

Files are imported in the order given. The first file that fails stops the
import unless --continue-on-error is set.

Re-importing a document replaces its body but keeps its position, so
checkpoints taken before the re-import stay valid.

Examples:
  ghl2hs stage import --entity contacts contacts.json
  ghl2hs stage import --entity messages messages.jsonl
  ghl2hs stage import --entity notes notes-1.jsonl notes-2.jsonl`,
	Args: cobra.MinimumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runStageImport),
}

var (
	stageEntity          string
	stageContinueOnError bool
)

func init() {
	rootCmd.AddCommand(stageCmd)
	stageCmd.AddCommand(stageImportCmd)
	stageImportCmd.Flags().StringVar(&stageEntity, "entity", "", "Staging collection to load (required)")
	stageImportCmd.Flags().BoolVar(&stageContinueOnError, "continue-on-error", false, "Keep importing the remaining files after one fails")
	_ = stageImportCmd.MarkFlagRequired("entity")
}

func runStageImport(app *appctx.App, cmd *cobra.Command, args []string) error {
	collection, err := domain.ValidateStagedEntity(stageEntity)
	if err != nil {
		return exitError(2, err)
	}

	log := app.Log.WithField("collection", collection)
	total := 0
	op := &bulk.Operation{ContinueOnError: stageContinueOnError, Log: log}
	result := op.Execute(cmd.Context(), args, func(ctx context.Context, path string) error {
		n, skipped, err := importFile(ctx, app.Store, collection, path, cmd.InOrStdin())
		total += n
		if err != nil {
			return err
		}
		log.WithField("file", path).Infof("staged %d document(s), %d without id", n, skipped)
		return nil
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Staged %d %s document(s)\n", total, collection)
	if result.Failed > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", e.Item, e.Error)
		}
		return exitError(1, fmt.Errorf("%d of %d file(s) failed", result.Failed, result.TotalItems))
	}
	return nil
}

// importFile stages one file, or stdin when path is -
func importFile(ctx context.Context, w documentWriter, collection domain.EntityType, path string, stdin io.Reader) (int, int, error) {
	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}
	return importDocuments(ctx, w, collection, in, strings.HasSuffix(path, ".json"))
}

type documentWriter interface {
	UpsertDocument(ctx context.Context, collection domain.EntityType, doc domain.Document) error
}

// importDocuments upserts every object read from in. Objects without an id
// cannot be staged and are counted in skipped.
func importDocuments(ctx context.Context, w documentWriter, collection domain.EntityType, in io.Reader, array bool) (n, skipped int, err error) {
	put := func(doc domain.Document) error {
		if doc.ID == "" {
			skipped++
			return nil
		}
		if err := w.UpsertDocument(ctx, collection, doc); err != nil {
			return fmt.Errorf("failed to stage %s %s: %w", collection, doc.ID, err)
		}
		n++
		return nil
	}

	if array {
		data, err := io.ReadAll(in)
		if err != nil {
			return n, skipped, fmt.Errorf("failed to read input: %w", err)
		}
		items, err := decodeArray(data, collection)
		if err != nil {
			return n, skipped, err
		}
		for _, item := range items {
			if err := put(domain.NewDocument(item)); err != nil {
				return n, skipped, err
			}
		}
		return n, skipped, nil
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		doc, err := domain.DecodeDocument(raw)
		if err != nil {
			return n, skipped, fmt.Errorf("line %d: %w", line, err)
		}
		if err := put(doc); err != nil {
			return n, skipped, err
		}
	}
	if err := scanner.Err(); err != nil {
		return n, skipped, fmt.Errorf("failed to read input: %w", err)
	}
	return n, skipped, nil
}

// decodeArray accepts a bare array or an object wrapping one under the
// collection name, the shape the source API returns
func decodeArray(data []byte, collection domain.EntityType) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if wrapper, ok := v.(map[string]interface{}); ok {
		v = wrapper[string(collection)]
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a JSON array of %s", collection)
	}
	out := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d is not a JSON object", i)
		}
		out = append(out, m)
	}
	return out, nil
}
