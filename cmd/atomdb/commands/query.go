package commands

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/query"
)

// QueryCmd runs a pattern query
var QueryCmd = &cobra.Command{
	Use:   "query [json]",
	Short: "Run a pattern query",
	Long: `Run a pattern query and print every answer.

The query is JSON, given as an argument or read with --file (JSON or YAML,
"-" for stdin). A top-level array is an AND of its clauses.

Examples:
  atomdb query --load animals.yaml '{"link": "Inheritance", "targets": [{"variable": "V"}, {"node": "Concept", "name": "mammal"}]}'
  atomdb query -f chain.json --format json
  atomdb query --backend remote --chunk-size 100 -f q.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

var (
	queryFile         string
	queryLoad         []string
	queryFormat       string
	queryChunkSize    int
	queryToplevelOnly bool
	queryLimit        int
)

func init() {
	QueryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a JSON or YAML file (- for stdin)")
	QueryCmd.Flags().StringSliceVar(&queryLoad, "load", nil, "Knowledge-base files to load first")
	QueryCmd.Flags().StringVar(&queryFormat, "format", FormatText, "Output format: text, json")
	QueryCmd.Flags().IntVar(&queryChunkSize, "chunk-size", -1, "Page size for link lookups (default from config, 0 = one page)")
	QueryCmd.Flags().BoolVar(&queryToplevelOnly, "toplevel-only", false, "Only match toplevel links at the outermost level")
	QueryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Stop after this many answers (0 = all)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := checkFormat(queryFormat); err != nil {
		return err
	}
	q, err := readQuery(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := preload(ctx, b, queryLoad); err != nil {
		return err
	}

	chunk := cfg.Query.ChunkSize
	if queryChunkSize >= 0 {
		chunk = queryChunkSize
	}
	engine := query.NewEngine(b,
		query.WithChunkSize(chunk),
		query.WithToplevelOnly(cfg.Query.ToplevelOnly || queryToplevelOnly),
		query.WithLogger(logger.Logger.Named("query")),
	)

	it, err := engine.Execute(ctx, q)
	if err != nil {
		return err
	}
	defer it.Close()

	out := cmd.OutOrStdout()
	n := 0
	for it.Next() {
		a, err := it.Get()
		if err != nil {
			return err
		}
		n++
		if err := writeAnswer(out, queryFormat, n, a); err != nil {
			return err
		}
		if queryLimit > 0 && n >= queryLimit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	logger.Logger.Infow("Query finished", logger.FieldQuery, q.String(), logger.FieldCount, n)
	return nil
}

// readQuery takes the query from the argument or --file.
func readQuery(stdin io.Reader, args []string) (query.Query, error) {
	switch {
	case len(args) == 1 && queryFile != "":
		return nil, errors.NewInvalidRequestError("give the query as an argument or with --file, not both")
	case len(args) == 1:
		return query.ParseJSON([]byte(args[0]))
	case queryFile == "":
		return nil, errors.NewInvalidRequestError("no query given")
	}

	var (
		data []byte
		err  error
	)
	if queryFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(queryFile)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read query %s", queryFile)
	}

	ext := strings.ToLower(filepath.Ext(queryFile))
	if ext != ".yaml" && ext != ".yml" {
		return query.ParseJSON(data)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewQueryFormatError("decode %s: %v", queryFile, err)
	}
	return query.FromValue(doc)
}
