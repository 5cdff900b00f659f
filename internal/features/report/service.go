package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-adrules/internal/features/rule"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type ReportService interface {
	ExportRunLogs(ctx context.Context, ruleID string, limit int) ([]byte, string, error)
}

type ReportServiceImpl struct {
	runLogs rule.RunLogRepository
	log     *zap.Logger
}

func NewReportService(runLogs rule.RunLogRepository, log *zap.Logger) ReportService {
	return &ReportServiceImpl{
		runLogs: runLogs,
		log:     log,
	}
}

var runLogColumns = []string{
	"Run ID", "Rule", "Trigger", "Status",
	"Started", "Finished", "Duration",
	"Campaigns Checked", "Affected", "Account Errors",
}

// ExportRunLogs renders the run history of one rule (or all rules when
// ruleID is empty) as an .xlsx workbook.
func (s *ReportServiceImpl) ExportRunLogs(ctx context.Context, ruleID string, limit int) ([]byte, string, error) {
	var (
		logs []rule.RunLog
		err  error
	)
	if ruleID == "" {
		logs, err = s.runLogs.ListRecent(ctx, limit)
	} else {
		logs, err = s.runLogs.ListByRule(ctx, ruleID, limit)
	}
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Rule Runs"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range runLogColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, entry := range logs {
		values := []interface{}{
			entry.RunID,
			entry.RuleName,
			string(entry.Trigger),
			entry.Status,
			entry.StartTime.Format("2006-01-02 15:04:05"),
			entry.EndTime.Format("2006-01-02 15:04:05"),
			entry.EndTime.Sub(entry.StartTime).Round(time.Millisecond).String(),
			entry.CampaignsChecked,
			entry.AffectedCount,
			strings.Join(entry.AccountErrors, "; "),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	for i := range runLogColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 20)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := "rule-runs.xlsx"
	if ruleID != "" {
		filename = fmt.Sprintf("rule-runs-%s.xlsx", ruleID)
	}

	s.log.Info("Run history exported",
		zap.String("rule_id", ruleID),
		zap.Int("entries", len(logs)))

	return buffer.Bytes(), filename, nil
}
