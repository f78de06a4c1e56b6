package report

import "errors"

var (
	ErrInvalidReportType  = errors.New("report type must be one of: summary, detailed, statistics")
	ErrInvalidGranularity = errors.New("granularity must be one of: day, week, month, year")
)
