package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/raaihank/phi-sentinel/internal/logger"
	"github.com/raaihank/phi-sentinel/internal/privacy"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// Pipeline de-identifies whole datasets: records stream in batches through a
// bounded worker pool and come out in input order with Text rewritten.
type Pipeline struct {
	deid   *privacy.Pipeline
	opts   privacy.Options
	config *Config
	logger *logger.Logger
}

// NewPipeline creates a batch pipeline. Every record runs under the same
// options value.
func NewPipeline(deid *privacy.Pipeline, opts privacy.Options, config *Config, log *logger.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.ProgressReport <= 0 {
		config.ProgressReport = 1000
	}
	return &Pipeline{
		deid:   deid,
		opts:   opts,
		config: config,
		logger: log,
	}, nil
}

// Process reads inputPath, de-identifies every record, and writes outputPath
// in the format implied by its extension.
func (p *Pipeline) Process(ctx context.Context, inputPath, outputPath string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	reader, err := openReader(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer reader.Close()

	writer, err := openWriter(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open output: %w", err)
	}

	p.logger.Info("Starting batch de-identification",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount),
	)

	for {
		select {
		case <-ctx.Done():
			writer.Close()
			return summary, ctx.Err()
		default:
		}

		batch, err := reader.ReadBatch(p.config.BatchSize)
		if err != nil {
			writer.Close()
			return summary, fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		p.processBatch(ctx, batch, summary)

		for _, record := range batch {
			if err := writer.Write(record); err != nil {
				writer.Close()
				return summary, fmt.Errorf("failed to write record %s: %w", record.RecordID, err)
			}
		}

		if summary.TotalRecords%int64(p.config.ProgressReport) == 0 {
			p.logger.Info("Batch progress",
				zap.Int64("records", summary.TotalRecords),
				zap.Int64("entities_found", summary.EntitiesFound),
			)
		}
	}

	if err := writer.Close(); err != nil {
		return summary, fmt.Errorf("failed to finalize output: %w", err)
	}

	summary.Duration = time.Since(start)
	p.logger.Info("Batch de-identification completed",
		zap.Int64("records", summary.TotalRecords),
		zap.Int64("failed", summary.ProcessedFailed),
		zap.Int64("entities_found", summary.EntitiesFound),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// processBatch runs one batch through the worker pool, rewriting records in
// place so output order matches input order.
func (p *Pipeline) processBatch(ctx context.Context, batch []*Record, summary *Summary) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	jobs := make(chan int)

	for w := 0; w < p.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				record := batch[i]
				result, err := p.deid.Deidentify(ctx, record.Text, p.opts)

				mu.Lock()
				if err != nil {
					summary.ProcessedFailed++
					if len(summary.Errors) < 20 {
						summary.Errors = append(summary.Errors,
							fmt.Sprintf("record %s: %v", record.RecordID, err))
					}
					record.Text = ""
					record.EntitiesFound = 0
				} else {
					summary.ProcessedOK++
					summary.EntitiesFound += int64(result.Result.Summary.EntitiesFound)
					if result.Result.Summary.ReviewRequired {
						summary.ReviewRequired++
					}
					record.Text = result.Result.DeidentifiedText
					record.EntitiesFound = result.Result.Summary.EntitiesFound
				}
				mu.Unlock()
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	summary.TotalRecords += int64(len(batch))
}

// recordReader streams input records batch by batch.
type recordReader interface {
	ReadBatch(size int) ([]*Record, error)
	Close() error
}

// recordWriter writes output records and finalizes the file on Close.
type recordWriter interface {
	Write(record *Record) error
	Close() error
}

func openReader(path string) (recordReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch DetectFileFormat(path) {
	case FormatParquet:
		return &parquetReader{file: file, reader: parquet.NewReader(file)}, nil
	case FormatJSON:
		return &jsonReader{file: file, decoder: json.NewDecoder(file)}, nil
	default:
		r := csv.NewReader(file)
		// Skip header
		if _, err := r.Read(); err != nil && err != io.EOF {
			file.Close()
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		return &csvReader{file: file, reader: r}, nil
	}
}

func openWriter(path string) (recordWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	switch DetectFileFormat(path) {
	case FormatParquet:
		return &parquetWriter{file: file, writer: parquet.NewWriter(file)}, nil
	case FormatJSON:
		return &jsonWriter{file: file, encoder: json.NewEncoder(file)}, nil
	default:
		w := csv.NewWriter(file)
		if err := w.Write([]string{"record_id", "text", "entities_found"}); err != nil {
			file.Close()
			return nil, err
		}
		return &csvWriter{file: file, writer: w}, nil
	}
}

type csvReader struct {
	file   *os.File
	reader *csv.Reader
}

func (r *csvReader) ReadBatch(size int) ([]*Record, error) {
	var batch []*Record
	for len(batch) < size {
		row, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return batch, err
		}
		if len(row) < 2 {
			continue
		}
		batch = append(batch, &Record{RecordID: row[0], Text: row[1]})
	}
	return batch, nil
}

func (r *csvReader) Close() error { return r.file.Close() }

type csvWriter struct {
	file   *os.File
	writer *csv.Writer
}

func (w *csvWriter) Write(record *Record) error {
	return w.writer.Write([]string{record.RecordID, record.Text, strconv.Itoa(record.EntitiesFound)})
}

func (w *csvWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type parquetReader struct {
	file   *os.File
	reader *parquet.Reader
}

func (r *parquetReader) ReadBatch(size int) ([]*Record, error) {
	var batch []*Record
	for len(batch) < size {
		var record Record
		err := r.reader.Read(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, &record)
	}
	return batch, nil
}

func (r *parquetReader) Close() error {
	r.reader.Close()
	return r.file.Close()
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.Writer
}

func (w *parquetWriter) Write(record *Record) error {
	return w.writer.Write(record)
}

func (w *parquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type jsonReader struct {
	file    *os.File
	decoder *json.Decoder
}

func (r *jsonReader) ReadBatch(size int) ([]*Record, error) {
	var batch []*Record
	for len(batch) < size {
		var record Record
		err := r.decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, &record)
	}
	return batch, nil
}

func (r *jsonReader) Close() error { return r.file.Close() }

type jsonWriter struct {
	file    *os.File
	encoder *json.Encoder
}

func (w *jsonWriter) Write(record *Record) error {
	return w.encoder.Encode(record)
}

func (w *jsonWriter) Close() error { return w.file.Close() }
