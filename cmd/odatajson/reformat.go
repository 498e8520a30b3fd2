package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/annotation"
	"github.com/reoring/odatajson/deserializer"
	"github.com/reoring/odatajson/edm"
	"github.com/reoring/odatajson/jsonreader"
	"github.com/reoring/odatajson/jsonwriter"
	"github.com/reoring/odatajson/serializer"
)

// payloadConfig is what reformat needs to read and rewrite one payload.
type payloadConfig struct {
	model    edm.Model
	kind     string
	typeName string
	metadata odatajson.MetadataLevel
	version  odatajson.Version
	filter   annotation.Filter
	ieee754  bool
	maxDepth int
}

func reformatCmd() *cli.Command {
	return &cli.Command{
		Name:      "reformat",
		Usage:     "Read OData JSON payloads and write them back under a metadata policy",
		ArgsUsage: "[FILE...]",
		Description: `Reads each payload with the deserializer and writes it again with the
serializer. Without files, stdin is read and the result written to stdout.

  odatajson reformat --model model.yaml --type NS.Customer customer.json
  odatajson reformat --kind set --metadata full --write people/*.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Usage: "EDM model in YAML", Sources: cli.EnvVars("ODATAJSON_MODEL")},
			&cli.StringFlag{Name: "kind", Usage: "payload kind (resource, set, collection, error)", Value: "resource"},
			&cli.StringFlag{Name: "type", Usage: "expected qualified type name"},
			&cli.StringFlag{Name: "metadata", Usage: "odata.metadata level (minimal, full, none)", Value: "minimal"},
			&cli.StringFlag{Name: "odata-version", Usage: "protocol version (4.0, 4.01)", Value: "4.0"},
			&cli.StringFlag{Name: "include-annotations", Usage: "instance annotation filter, e.g. \"*\" or \"NS.*,-NS.Internal\"", Value: "*"},
			&cli.BoolFlag{Name: "ieee754", Usage: "write Int64 and Decimal values as strings"},
			&cli.IntFlag{Name: "max-depth", Usage: "maximum nesting depth", Value: 64},
			&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "rewrite files in place"},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "files processed in parallel", Value: 4},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := configFromCmd(cmd)
			if err != nil {
				return err
			}
			files := cmd.Args().Slice()
			if len(files) == 0 {
				in, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				out, err := reformat(in, cfg)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.Root().Writer, string(out))
				return err
			}
			return reformatFiles(ctx, files, cfg, cmd.Bool("write"), int(cmd.Int("jobs")), cmd.Root().Writer)
		},
	}
}

func configFromCmd(cmd *cli.Command) (payloadConfig, error) {
	cfg := payloadConfig{
		kind:     cmd.String("kind"),
		typeName: cmd.String("type"),
		ieee754:  cmd.Bool("ieee754"),
		maxDepth: int(cmd.Int("max-depth")),
	}
	switch cmd.String("metadata") {
	case "minimal":
		cfg.metadata = odatajson.MetadataMinimal
	case "full":
		cfg.metadata = odatajson.MetadataFull
	case "none":
		cfg.metadata = odatajson.MetadataNone
	default:
		return cfg, fmt.Errorf("unknown metadata level: %q", cmd.String("metadata"))
	}
	switch cmd.String("odata-version") {
	case "4.0", "4":
		cfg.version = odatajson.V4
	case "4.01":
		cfg.version = odatajson.V401
	default:
		return cfg, fmt.Errorf("unknown OData version: %q", cmd.String("odata-version"))
	}
	filter, err := annotation.ParseFilter(cmd.String("include-annotations"))
	if err != nil {
		return cfg, err
	}
	cfg.filter = filter
	if path := cmd.String("model"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading model: %w", err)
		}
		schema, err := edm.LoadYAML(data)
		if err != nil {
			return cfg, err
		}
		cfg.model = schema
	}
	return cfg, nil
}

// reformat reads one payload of cfg.kind and writes it back.
func reformat(in []byte, cfg payloadConfig) ([]byte, error) {
	d := deserializer.New(jsonreader.NewBytes(in, jsonreader.Options{MaxDepth: cfg.maxDepth}), deserializer.Settings{
		Model:     cfg.model,
		Version:   cfg.version,
		Buffering: true,
	})

	var (
		write func(*serializer.Serializer) error
		err   error
	)
	switch cfg.kind {
	case "resource":
		var r *odatajson.Resource
		if r, err = d.ReadResource(cfg.typeName); err == nil {
			write = func(s *serializer.Serializer) error { return s.WriteResource(r, cfg.typeName) }
		}
	case "set":
		var set *odatajson.ResourceSet
		if set, err = d.ReadResourceSet(cfg.typeName); err == nil {
			write = func(s *serializer.Serializer) error { return s.WriteResourceSet(set, cfg.typeName) }
		}
	case "collection":
		declared := cfg.declared()
		var c *odatajson.Collection
		if c, err = d.ReadCollection(declared); err == nil {
			write = func(s *serializer.Serializer) error { return s.WriteProperty(c, declared) }
		}
	case "error":
		var oe serializer.ODataError
		if oe, err = d.ReadError(); err == nil {
			write = func(s *serializer.Serializer) error { return s.WriteError(oe) }
		}
	default:
		return nil, fmt.Errorf("unknown payload kind: %q", cfg.kind)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	s := serializer.New(jsonwriter.New(&buf, jsonwriter.Options{IEEE754Compatible: cfg.ieee754}), serializer.Settings{
		Model:            cfg.model,
		Metadata:         cfg.metadata,
		Version:          cfg.version,
		AnnotationFilter: cfg.filter,
		ContextURL:       d.ContextURL(),
	})
	if err := write(s); err != nil {
		return nil, err
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (cfg payloadConfig) declared() *edm.TypeRef {
	if cfg.model == nil || cfg.typeName == "" {
		return nil
	}
	t, _ := cfg.model.LookupType(odatajson.CollectionTypeName(cfg.typeName))
	return t
}

// reformatFiles processes files concurrently. Results are printed in
// argument order unless written back in place.
func reformatFiles(ctx context.Context, files []string, cfg payloadConfig, inPlace bool, jobs int, stdout io.Writer) error {
	results := make([][]byte, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			in, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out, err := reformat(in, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			slog.Debug("reformatted payload", "file", path, "in", len(in), "out", len(out))
			if inPlace {
				return os.WriteFile(path, out, 0o644)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if inPlace {
		return nil
	}
	for _, out := range results {
		if _, err := fmt.Fprintln(stdout, string(out)); err != nil {
			return err
		}
	}
	return nil
}
