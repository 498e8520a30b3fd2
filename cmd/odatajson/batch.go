package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/reoring/odatajson/batch"
	"github.com/reoring/odatajson/metrics"
)

func batchCmd() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Build and inspect JSON batch payloads",
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Validate a batch payload and list its operations",
				ArgsUsage: "FILE",
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one batch file")
					}
					f, err := os.Open(cmd.Args().First())
					if err != nil {
						return err
					}
					defer f.Close()
					b, err := batch.ReadBatch(f)
					if err != nil {
						return err
					}
					return printBatch(cmd.Root().Writer, b)
				},
			},
			{
				Name:      "build",
				Usage:     "Write a request batch described in YAML",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-parts", Usage: "maximum parts per batch (0 for no limit)"},
					&cli.IntFlag{Name: "max-changeset-operations", Usage: "maximum operations per changeset (0 for no limit)"},
					&cli.StringFlag{Name: "metrics", Usage: "write writer metrics to this file in Prometheus text format"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one description file")
					}
					data, err := os.ReadFile(cmd.Args().First())
					if err != nil {
						return err
					}
					var spec buildSpec
					if err := yaml.Unmarshal(data, &spec); err != nil {
						return fmt.Errorf("parsing %s: %w", cmd.Args().First(), err)
					}
					reg := prometheus.NewRegistry()
					opts := batch.Options{
						BaseURL:                   spec.BaseURL,
						MaxPartsPerBatch:          int(cmd.Int("max-parts")),
						MaxOperationsPerChangeset: int(cmd.Int("max-changeset-operations")),
						Logger:                    slog.Default(),
						Metrics:                   metrics.NewCollector(reg),
					}
					err = buildBatch(cmd.Root().Writer, spec, opts)
					if path := cmd.String("metrics"); path != "" {
						if werr := prometheus.WriteToTextfile(path, reg); werr != nil && err == nil {
							err = fmt.Errorf("writing metrics: %w", werr)
						}
					}
					return err
				},
			},
		},
	}
}

func printBatch(w io.Writer, b *batch.Batch) error {
	kind := "requests"
	if b.Responses {
		kind = "responses"
	}
	if _, err := fmt.Fprintf(w, "%s: %d operations, %d changesets\n", kind, len(b.Operations), len(b.Changesets)); err != nil {
		return err
	}
	for _, op := range b.Operations {
		line := op.Method + " " + op.URL
		if b.Responses {
			line = fmt.Sprint(op.Status)
		}
		id := op.ContentID
		if id == "" {
			id = "-"
		}
		if op.AtomicityGroup != "" {
			line += " group=" + op.AtomicityGroup
		}
		if len(op.DependsOn) > 0 {
			line += " dependsOn=" + strings.Join(op.DependsOn, ",")
		}
		if op.Body != nil {
			line += fmt.Sprintf(" body=%dB", len(op.Body))
		}
		if _, err := fmt.Fprintf(w, "  %s %s\n", id, line); err != nil {
			return err
		}
	}
	return nil
}

// buildSpec describes a request batch. An entry with nested requests is a
// changeset.
type buildSpec struct {
	BaseURL  string       `yaml:"baseURL"`
	URI      string       `yaml:"uri"`
	Requests []buildEntry `yaml:"requests"`
}

type buildEntry struct {
	ID        string            `yaml:"id"`
	Method    string            `yaml:"method"`
	URL       string            `yaml:"url"`
	DependsOn []string          `yaml:"dependsOn"`
	Headers   map[string]string `yaml:"headers"`
	Body      string            `yaml:"body"`
	Changeset string            `yaml:"changeset"`
	Requests  []buildEntry      `yaml:"requests"`
}

func uriOption(s string) (batch.URIOption, error) {
	switch s {
	case "", "absolute":
		return batch.URIAbsolute, nil
	case "relative":
		return batch.URIRelativeToBase, nil
	case "path":
		return batch.URIResourcePath, nil
	}
	return 0, fmt.Errorf("unknown uri option: %q", s)
}

func buildBatch(out io.Writer, spec buildSpec, opts batch.Options) error {
	opt, err := uriOption(spec.URI)
	if err != nil {
		return err
	}
	w := batch.NewRequestWriter(out, opts)
	if err := w.WriteStartBatch(); err != nil {
		return err
	}
	for _, e := range spec.Requests {
		if len(e.Requests) == 0 {
			if err := writeRequest(w, e, opt); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteStartChangeset(e.Changeset); err != nil {
			return err
		}
		for _, inner := range e.Requests {
			if err := writeRequest(w, inner, opt); err != nil {
				return err
			}
		}
		if err := w.WriteEndChangeset(); err != nil {
			return err
		}
	}
	if err := w.WriteEndBatch(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func writeRequest(w *batch.Writer, e buildEntry, opt batch.URIOption) error {
	op, err := w.CreateOperationRequestMessage(e.Method, e.URL, e.ID, opt, e.DependsOn)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(e.Headers))
	for name := range e.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := op.SetHeader(name, e.Headers[name]); err != nil {
			return err
		}
	}
	if e.Body == "" {
		return nil
	}
	s, err := op.Stream()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(s, e.Body); err != nil {
		return err
	}
	return s.Close()
}
