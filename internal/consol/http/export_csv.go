package http

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/thinq-erp/consol/internal/consol"
	"github.com/thinq-erp/consol/internal/statement"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func statementTitle(stmt string) string {
	switch stmt {
	case statement.StatementBalanceSheet:
		return "Consolidated Balance Sheet"
	case statement.StatementProfitLoss:
		return "Consolidated Profit & Loss"
	case statement.StatementCashFlow:
		return "Consolidated Cash Flow"
	default:
		return "Consolidated Report"
	}
}

func writeReportCSV(w io.Writer, report consol.Report) error {
	streamer := newCSVStreamer(w)
	if err := writeCSVMetadata(streamer, statementTitle(report.Statement), report.Filters); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Section", "Entity", "Account Code", "Account Name", "Amount"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := streamer.writeRow([]string{
			row.Section,
			row.EntityName,
			row.AccountCode,
			row.AccountName,
			formatDecimal(row.Amount),
		}); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{"", "", "", "", ""}); err != nil {
		return err
	}
	sections := make([]string, 0, len(report.SectionTotals))
	for section := range report.SectionTotals {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	for _, section := range sections {
		if err := streamer.writeRow([]string{"Totals", "", section, "", formatDecimal(report.SectionTotals[section])}); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

func writeCSVMetadata(streamer *csvStreamer, reportName string, filter consol.Filters) error {
	if err := streamer.writeComment(fmt.Sprintf("# Report: %s", reportName)); err != nil {
		return err
	}
	elimState := "OFF"
	if filter.IncludeElimination {
		elimState = "ON"
	}
	return streamer.writeComment(fmt.Sprintf("# Root: %d | Period: %s..%s | Eliminations: %s",
		filter.RootEntityID,
		filter.DateFrom.Format("2006-01-02"),
		filter.DateTo.Format("2006-01-02"),
		elimState))
}

func formatDecimal(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
