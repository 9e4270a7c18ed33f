package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/shopreports/internal/reports"
)

type stubGenerator struct {
	art        reports.Artifact
	err        error
	last       reports.Request
	allowEmpty bool
}

func (s *stubGenerator) Generate(ctx context.Context, req reports.Request, allowEmpty bool) (reports.Artifact, error) {
	s.last = req
	s.allowEmpty = allowEmpty
	return s.art, s.err
}

func TestExportCommandWritesFile(t *testing.T) {
	gen := &stubGenerator{art: reports.Artifact{Name: "CustomerLedger_Ann_1.pdf", Data: []byte("%PDF")}}
	cli, err := NewExportCLI(gen)
	require.NoError(t, err)

	dir := t.TempDir()
	opts, err := ParseExportFlags([]string{
		"--kind", "customer-ledger", "--format", "pdf", "--shop", "3", "--entity", "9",
		"--from", "2024-01-01", "--to", "2024-01-31", "--out", dir, "--allow-empty",
	}, new(bytes.Buffer))
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	opts.Stdout, opts.Stderr = stdout, stderr
	exitCode := cli.ExportCommand(context.Background(), opts)
	require.Equal(t, ExitOK, exitCode, stderr.String())

	path := filepath.Join(dir, "CustomerLedger_Ann_1.pdf")
	require.Equal(t, path, strings.TrimSpace(stdout.String()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(data))

	require.Equal(t, reports.KindCustomerLedger, gen.last.Kind)
	require.Equal(t, reports.OutputPDF, gen.last.Format)
	require.Equal(t, int64(9), gen.last.Filter.EntityID)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), gen.last.Filter.From)
	require.True(t, gen.allowEmpty)
}

func TestExportCommandInvalidInput(t *testing.T) {
	cli, err := NewExportCLI(&stubGenerator{})
	require.NoError(t, err)

	for _, opts := range []ExportOptions{
		{Kind: "payroll", Format: "xlsx", ShopID: 1},
		{Kind: "stock", Format: "csv", ShopID: 1},
		{Kind: "stock", Format: "xlsx", ShopID: 1, From: "01/01/2024"},
		{Kind: "stock-track", Format: "xlsx", ShopID: 1, IDs: "1,a"},
	} {
		stderr := new(bytes.Buffer)
		opts.Stdout, opts.Stderr = new(bytes.Buffer), stderr
		require.Equal(t, ExitUsage, cli.ExportCommand(context.Background(), opts), opts.Kind)
		require.NotEmpty(t, stderr.String())
	}
}

func TestExportCommandOutcomes(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{reports.ErrEmptyResult, ExitNoData, "No Data"},
		{&reports.MissingFilterError{Field: "shop_id"}, ExitUsage, "missing required filter: shop_id"},
		{&reports.RenderError{Kind: reports.KindStock, Stage: reports.StageRender, Err: errors.New("boom")}, ExitFailed, "failed to generate report, try again"},
	}
	for _, tc := range cases {
		cli, err := NewExportCLI(&stubGenerator{err: tc.err})
		require.NoError(t, err)
		stderr := new(bytes.Buffer)
		code := cli.ExportCommand(context.Background(), ExportOptions{
			Kind: "stock", Format: "xlsx", OutDir: t.TempDir(), Stdout: new(bytes.Buffer), Stderr: stderr,
		})
		require.Equal(t, tc.code, code)
		require.Contains(t, stderr.String(), tc.msg)
	}
}

func TestParseExportFlagsRejectsUnknownFlag(t *testing.T) {
	_, err := ParseExportFlags([]string{"--bogus"}, new(bytes.Buffer))
	require.Error(t, err)
}
