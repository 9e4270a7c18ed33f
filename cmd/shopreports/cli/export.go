package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/shopreports/internal/reports"
)

// Exit codes of the export command.
const (
	ExitOK     = 0
	ExitUsage  = 1
	ExitFailed = 2
	ExitNoData = 3
)

const dateLayout = "2006-01-02"

// Generator renders one report.
type Generator interface {
	Generate(ctx context.Context, req reports.Request, allowEmpty bool) (reports.Artifact, error)
}

// ExportCLI renders reports to disk through the same pipeline as the server.
type ExportCLI struct {
	generator Generator
}

// NewExportCLI constructs the export helper.
func NewExportCLI(generator Generator) (*ExportCLI, error) {
	if generator == nil {
		return nil, errors.New("export cli: generator required")
	}
	return &ExportCLI{generator: generator}, nil
}

// ExportOptions defines available flags for the export command.
type ExportOptions struct {
	Kind             string
	Format           string
	ShopID           int64
	EntityID         int64
	From             string
	To               string
	SearchBy         string
	IDs              string
	TransactionTypes string
	ShopName         string
	EntityName       string
	OutDir           string
	AllowEmpty       bool
	Stdout           io.Writer
	Stderr           io.Writer
}

// ParseExportFlags reads export flags from args.
func ParseExportFlags(args []string, stderr io.Writer) (ExportOptions, error) {
	opts := ExportOptions{Stderr: stderr}
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Kind, "kind", "", "report kind: "+kindList())
	fs.StringVar(&opts.Format, "format", string(reports.OutputXLSX), "output format: xlsx or pdf")
	fs.Int64Var(&opts.ShopID, "shop", 0, "shop id (required)")
	fs.Int64Var(&opts.EntityID, "entity", 0, "customer or vendor id for ledger reports")
	fs.StringVar(&opts.From, "from", "", "start date YYYY-MM-DD")
	fs.StringVar(&opts.To, "to", "", "end date YYYY-MM-DD")
	fs.StringVar(&opts.SearchBy, "search", "", "free text search")
	fs.StringVar(&opts.IDs, "ids", "", "comma separated inventory ids for stock-track")
	fs.StringVar(&opts.TransactionTypes, "types", "", "comma separated transaction types")
	fs.StringVar(&opts.ShopName, "shop-name", "", "shop name printed in the header")
	fs.StringVar(&opts.EntityName, "entity-name", "", "customer or vendor name printed in the header")
	fs.StringVar(&opts.OutDir, "out", ".", "output directory")
	fs.BoolVar(&opts.AllowEmpty, "allow-empty", false, "write a header-only document when no rows match")
	if err := fs.Parse(args); err != nil {
		return ExportOptions{}, err
	}
	return opts, nil
}

// ExportCommand renders the report and writes it into OutDir. It prints the
// written path on success.
func (c *ExportCLI) ExportCommand(ctx context.Context, opts ExportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	req, err := buildRequest(opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
		return ExitUsage
	}

	art, err := c.generator.Generate(ctx, req, opts.AllowEmpty)
	switch {
	case errors.Is(err, reports.ErrEmptyResult):
		_, _ = fmt.Fprintln(opts.Stderr, "export: No Data (use --allow-empty for a header-only file)")
		return ExitNoData
	case err != nil && reports.Permanent(err):
		_, _ = fmt.Fprintf(opts.Stderr, "export: %s\n", reports.Message(err))
		return ExitUsage
	case err != nil:
		_, _ = fmt.Fprintf(opts.Stderr, "export: %s: %v\n", reports.Message(err), err)
		return ExitFailed
	}

	dir := opts.OutDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: create output dir: %v\n", err)
		return ExitFailed
	}
	path := filepath.Join(dir, art.Name)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: write file: %v\n", err)
		return ExitFailed
	}
	_, _ = fmt.Fprintln(opts.Stdout, path)
	return ExitOK
}

func buildRequest(opts ExportOptions) (reports.Request, error) {
	kind, err := reports.ParseKind(opts.Kind)
	if err != nil {
		return reports.Request{}, fmt.Errorf("--kind must be one of %s", kindList())
	}
	format, err := reports.ParseOutputFormat(opts.Format)
	if err != nil {
		return reports.Request{}, fmt.Errorf("--format must be xlsx or pdf")
	}
	req := reports.Request{
		Kind:   kind,
		Format: format,
		Filter: reports.Filter{
			ShopID:           opts.ShopID,
			EntityID:         opts.EntityID,
			SearchBy:         strings.TrimSpace(opts.SearchBy),
			TransactionTypes: splitList(opts.TransactionTypes),
		},
		Meta: reports.Meta{ShopName: opts.ShopName, EntityName: opts.EntityName},
	}
	if req.Filter.From, err = parseDate(opts.From, "--from"); err != nil {
		return reports.Request{}, err
	}
	if req.Filter.To, err = parseDate(opts.To, "--to"); err != nil {
		return reports.Request{}, err
	}
	for _, raw := range splitList(opts.IDs) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return reports.Request{}, fmt.Errorf("--ids: invalid id %q", raw)
		}
		req.Filter.IDs = append(req.Filter.IDs, id)
	}
	return req, nil
}

func parseDate(raw, flagName string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q (expected YYYY-MM-DD)", flagName, raw)
	}
	return t, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func kindList() string {
	names := make([]string, 0, len(reports.Kinds))
	for _, k := range reports.Kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
