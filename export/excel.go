// Package export renders interview history as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/prepmate/backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	SessionsSheet = "Sessions"
	AnswersSheet  = "Answers"
	timeLayout    = "2006-01-02 15:04"
)

// InterviewHistory writes an .xlsx workbook with one sheet for sessions and one for answers
func InterviewHistory(w io.Writer, sessions []models.InterviewSession) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SessionsSheet)
	if _, err := f.NewSheet(AnswersSheet); err != nil {
		return fmt.Errorf("failed to create answers sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	if err := writeSessionsSheet(f, headerStyle, sessions); err != nil {
		return fmt.Errorf("failed to create sessions sheet: %w", err)
	}
	if err := writeAnswersSheet(f, headerStyle, sessions); err != nil {
		return fmt.Errorf("failed to create answers sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSessionsSheet(f *excelize.File, headerStyle int, sessions []models.InterviewSession) error {
	f.SetColWidth(SessionsSheet, "A", "A", 38)
	f.SetColWidth(SessionsSheet, "B", "B", 28)
	f.SetColWidth(SessionsSheet, "C", "H", 14)
	f.SetColWidth(SessionsSheet, "I", "I", 60)

	headers := []string{"Session", "Role", "Type", "Difficulty", "Status", "Started", "Answered", "Score", "Summary"}
	if err := writeHeader(f, SessionsSheet, headerStyle, headers); err != nil {
		return err
	}

	for i, s := range sessions {
		row := i + 2
		f.SetCellValue(SessionsSheet, fmt.Sprintf("A%d", row), s.ID)
		f.SetCellValue(SessionsSheet, fmt.Sprintf("B%d", row), s.Role)
		f.SetCellValue(SessionsSheet, fmt.Sprintf("C%d", row), s.InterviewType)
		f.SetCellValue(SessionsSheet, fmt.Sprintf("D%d", row), s.Difficulty)
		f.SetCellValue(SessionsSheet, fmt.Sprintf("E%d", row), s.Status)
		f.SetCellValue(SessionsSheet, fmt.Sprintf("F%d", row), s.StartedAt.Format(timeLayout))
		f.SetCellValue(SessionsSheet, fmt.Sprintf("G%d", row), fmt.Sprintf("%d/%d", s.AnsweredCount(), s.QuestionCount))
		if s.OverallScore != nil {
			f.SetCellValue(SessionsSheet, fmt.Sprintf("H%d", row), *s.OverallScore)
		}
		if s.Feedback != nil {
			f.SetCellValue(SessionsSheet, fmt.Sprintf("I%d", row), s.Feedback.Summary)
		}
	}

	if len(sessions) > 0 {
		return f.AutoFilter(SessionsSheet, fmt.Sprintf("A1:I%d", len(sessions)+1), []excelize.AutoFilterOptions{})
	}
	return nil
}

func writeAnswersSheet(f *excelize.File, headerStyle int, sessions []models.InterviewSession) error {
	f.SetColWidth(AnswersSheet, "A", "A", 38)
	f.SetColWidth(AnswersSheet, "B", "B", 6)
	f.SetColWidth(AnswersSheet, "C", "D", 60)
	f.SetColWidth(AnswersSheet, "E", "E", 8)
	f.SetColWidth(AnswersSheet, "F", "F", 60)

	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}

	headers := []string{"Session", "#", "Question", "Answer", "Score", "Improvements"}
	if err := writeHeader(f, AnswersSheet, headerStyle, headers); err != nil {
		return err
	}

	row := 2
	for _, s := range sessions {
		for _, q := range s.Questions {
			f.SetCellValue(AnswersSheet, fmt.Sprintf("A%d", row), s.ID)
			f.SetCellValue(AnswersSheet, fmt.Sprintf("B%d", row), q.Position+1)
			f.SetCellValue(AnswersSheet, fmt.Sprintf("C%d", row), q.Text)
			if q.Answer != nil {
				f.SetCellValue(AnswersSheet, fmt.Sprintf("D%d", row), q.Answer.Transcript)
				f.SetCellValue(AnswersSheet, fmt.Sprintf("E%d", row), q.Answer.Score)
				if q.Answer.Feedback != nil {
					f.SetCellValue(AnswersSheet, fmt.Sprintf("F%d", row), strings.Join(q.Answer.Feedback.Improvements, "\n"))
				}
			}
			f.SetCellStyle(AnswersSheet, fmt.Sprintf("C%d", row), fmt.Sprintf("F%d", row), wrapStyle)
			row++
		}
	}
	return nil
}
