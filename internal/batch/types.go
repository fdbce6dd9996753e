package batch

import (
	"strings"
	"time"
)

// Record is a single row of an input dataset. Output rows reuse the same
// shape with Text replaced by its de-identified form.
type Record struct {
	RecordID      string `csv:"record_id" parquet:"record_id" json:"record_id"`
	Text          string `csv:"text" parquet:"text" json:"text"`
	EntitiesFound int    `csv:"entities_found" parquet:"entities_found" json:"entities_found"`
}

// Summary reports one file run.
type Summary struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	EntitiesFound   int64         `json:"entities_found"`
	ReviewRequired  int64         `json:"review_required"`
	Duration        time.Duration `json:"duration"`
	Errors          []string      `json:"errors,omitempty"`
}

// Config contains batch pipeline configuration
type Config struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`           // 1000
	WorkerCount    int `yaml:"worker_count" mapstructure:"worker_count"`       // 4
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"` // 1000
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return FormatCSV
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json") || strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatCSV // Default to CSV
	}
}
