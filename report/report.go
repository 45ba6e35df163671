// Package report writes a per-run coverage spreadsheet: one row per source
// summarizing node count, trace count, start/end set sizes, and orphan
// dialog count, giving a maintainer an at-a-glance view of how well each
// source's traces cover its graph.
package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kqwyf/dialogtrace/model"
)

const sheetName = "Coverage"

var header = []string{
	"Source", "Quest ID", "SubQuest ID", "Order",
	"Talk Count", "Dialog Count", "Trace Count",
	"Start Count", "End Count", "Orphan Dialogs",
}

// Row is one source's coverage summary.
type Row struct {
	Source        string
	QuestID       int
	SubQuestID    int
	Order         int
	TalkCount     int
	DialogCount   int
	TraceCount    int
	StartCount    int
	EndCount      int
	OrphanDialogs int
}

// BuildRows derives one Row per source from db. starts/ends, keyed by
// source name, are the start/end sets chosen for that source by package
// startend; the pipeline discards these once covering finishes, so
// callers that want them in the report must capture them before calling
// flow.Cover.
func BuildRows(db *model.Database, starts, ends map[string][]int) []Row {
	rows := make([]Row, 0, len(db.Sources))
	for _, name := range db.SortedSourceNames() {
		src := db.Sources[name]

		covered := make(map[int]bool, len(src.Traces)*4)
		for _, trace := range src.Traces {
			for _, did := range trace {
				covered[did] = true
			}
		}
		orphans := 0
		for _, did := range src.DialogIDs {
			if !covered[did] {
				orphans++
			}
		}

		rows = append(rows, Row{
			Source:        name,
			QuestID:       src.QuestID,
			SubQuestID:    src.SubQuestID,
			Order:         src.Order,
			TalkCount:     len(src.TalkIDs),
			DialogCount:   len(src.DialogIDs),
			TraceCount:    len(src.Traces),
			StartCount:    len(starts[name]),
			EndCount:      len(ends[name]),
			OrphanDialogs: orphans,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Source < rows[j].Source })
	return rows
}

// Write renders rows as a single-sheet xlsx workbook at path, one row per
// source plus a header row.
func Write(path string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("report: header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("report: writing header: %w", err)
		}
	}

	for i, r := range rows {
		rowNum := i + 2
		values := []any{
			r.Source, r.QuestID, r.SubQuestID, r.Order,
			r.TalkCount, r.DialogCount, r.TraceCount,
			r.StartCount, r.EndCount, r.OrphanDialogs,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return fmt.Errorf("report: row cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("report: writing row %d: %w", rowNum, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: saving %q: %w", path, err)
	}
	return nil
}
