// Package exporter renders ranked threat tables for external consumers.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/solhaga/threatlens/internal/core/domain"
)

// csvHeader is the fixed column set of the CSV export. Rank is 1-based and
// follows the ranking order of the input.
var csvHeader = []string{
	"rank", "id", "score", "severity", "stride",
	"location", "description", "mitigations", "probability",
}

// CSVExporter writes ranked threats as CSV for spreadsheet triage.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes the ranked threats to w. The input must already be ranked;
// the exporter never reorders. Either every row is written or an error is
// returned before the writer is flushed.
func (e *CSVExporter) Export(w io.Writer, ranked []domain.ScoredThreat) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, t := range ranked {
		row := []string{
			strconv.Itoa(i + 1),
			t.ID,
			fmt.Sprintf("%.2f", t.DreadScore),
			string(t.Tier),
			joinStride(t.Stride, "|"),
			t.Location,
			t.Description,
			strings.Join(t.Mitigations, "; "),
			strconv.FormatFloat(t.Probability, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for threat %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return nil
}

func joinStride(stride []domain.StrideCategory, sep string) string {
	parts := make([]string, len(stride))
	for i, s := range stride {
		parts[i] = string(s)
	}
	return strings.Join(parts, sep)
}
