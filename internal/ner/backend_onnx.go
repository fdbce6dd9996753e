//go:build onnx
// +build onnx

package ner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Class indices emitted by the token-classification head, BIO scheme.
const (
	classOutside = iota
	classBeginPerson
	classInsidePerson
	classBeginLocation
	classInsideLocation
)

const unknownToken = "[UNK]"

// ortEnv guards the process-wide ONNX Runtime environment. Initialization is
// expensive and must happen once; the environment is read-only afterwards and
// shared by every session.
var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

func initOrtEnv() error {
	ortEnvOnce.Do(func() {
		if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
			ort.SetSharedLibraryPath(shlib)
		} else if shlib := os.Getenv("ORT_SHLIB"); shlib != "" {
			ort.SetSharedLibraryPath(shlib)
		}
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// onnxProvider runs a BIO token-classification model over whitespace tokens.
type onnxProvider struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	vocab      map[string]int64
	unkID      int64
	maxLength  int
	logger     *zap.Logger
	mu         sync.RWMutex
	ready      bool
}

// newBackendProvider initializes the ONNX Runtime NER backend. Requires build
// tag 'onnx'. Any initialization failure returns nil and the factory degrades
// to the Unavailable provider.
func newBackendProvider(cfg Config, logger *zap.Logger) Provider {
	if err := initOrtEnv(); err != nil {
		logger.Error("ONNX Runtime environment init failed", zap.Error(err))
		return nil
	}

	vocab, err := loadVocab(cfg.VocabPath)
	if err != nil {
		logger.Error("Failed to load NER vocabulary", zap.Error(err), zap.String("vocab", cfg.VocabPath))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		logger.Error("Failed to inspect NER model IO", zap.Error(err), zap.String("model", cfg.ModelPath))
		return nil
	}
	if len(outputsInfo) == 0 {
		logger.Error("NER model reports no outputs", zap.String("model", cfg.ModelPath))
		return nil
	}

	preferred := []string{"input_ids", "attention_mask", "token_type_ids"}
	available := map[string]bool{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = true
	}
	var inputNames []string
	for _, name := range preferred {
		if available[name] {
			inputNames = append(inputNames, name)
		}
	}
	if len(inputNames) == 0 {
		logger.Error("NER model declares no recognized inputs", zap.String("model", cfg.ModelPath))
		return nil
	}
	outputName := outputsInfo[0].Name

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		logger.Error("NER session creation failed", zap.Error(err), zap.String("model", cfg.ModelPath))
		return nil
	}

	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 256
	}

	unkID, ok := vocab[unknownToken]
	if !ok {
		unkID = 0
	}

	logger.Info("ONNX NER backend ready",
		zap.String("model", cfg.ModelPath),
		zap.Strings("inputs", inputNames),
		zap.String("output", outputName),
		zap.Int("vocab_size", len(vocab)),
	)
	return &onnxProvider{
		session:    sess,
		inputNames: inputNames,
		outputName: outputName,
		vocab:      vocab,
		unkID:      unkID,
		maxLength:  maxLength,
		logger:     logger,
		ready:      true,
	}
}

// loadVocab reads a one-token-per-line vocabulary file.
func loadVocab(path string) (map[string]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		vocab[token] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary file %s", path)
	}
	return vocab, nil
}

// Available reports whether the session is ready to answer.
func (p *onnxProvider) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready && p.session != nil
}

// wordSpan is a whitespace token with rune offsets into the original text,
// trimmed of surrounding punctuation.
type wordSpan struct {
	text  string
	start int
	end   int
}

func splitWords(text string) []wordSpan {
	runes := []rune(text)
	var words []wordSpan
	i := 0
	for i < len(runes) {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			j++
		}
		start, end := i, j
		for start < end && unicode.IsPunct(runes[start]) {
			start++
		}
		for end > start && unicode.IsPunct(runes[end-1]) {
			end--
		}
		if end > start {
			words = append(words, wordSpan{text: string(runes[start:end]), start: start, end: end})
		}
		i = j
	}
	return words
}

// Detect classifies whitespace tokens and aggregates contiguous PER and LOC
// tags into spans. Errors are returned to the caller, which treats them as a
// degraded state rather than a failure.
func (p *onnxProvider) Detect(ctx context.Context, text string) ([]Span, error) {
	if !p.Available() {
		return nil, fmt.Errorf("onnx ner backend not ready")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	words := splitWords(text)
	if len(words) == 0 {
		return nil, nil
	}
	if len(words) > p.maxLength {
		words = words[:p.maxLength]
	}

	seqLen := len(words)
	inputIDs := make([]int64, seqLen)
	attention := make([]int64, seqLen)
	for i, w := range words {
		id, ok := p.vocab[strings.ToLower(w.text)]
		if !ok {
			id = p.unkID
		}
		inputIDs[i] = id
		attention[i] = 1
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor[int64](shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor[int64](shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := make([]ort.Value, 0, len(p.inputNames))
	for _, name := range p.inputNames {
		switch strings.ToLower(name) {
		case "input_ids":
			inputs = append(inputs, idsTensor)
		case "attention_mask":
			inputs = append(inputs, maskTensor)
		default:
			zeros, zerr := ort.NewTensor[int64](shape, make([]int64, seqLen))
			if zerr != nil {
				return nil, fmt.Errorf("failed to create placeholder tensor for %s: %w", name, zerr)
			}
			defer zeros.Destroy()
			inputs = append(inputs, zeros)
		}
	}

	outputs := make([]ort.Value, 1)
	if err := p.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx ner run failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("onnx ner returned no output")
	}
	defer outputs[0].Destroy()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}
	outShape := logits.GetShape()
	if len(outShape) != 3 || int(outShape[1]) != seqLen {
		return nil, fmt.Errorf("unexpected logits shape %v for %d tokens", outShape, seqLen)
	}
	numClasses := int(outShape[2])
	data := logits.GetData()

	classes := make([]int, seqLen)
	for i := 0; i < seqLen; i++ {
		best, bestScore := classOutside, float32(-1e30)
		for c := 0; c < numClasses; c++ {
			if score := data[i*numClasses+c]; score > bestScore {
				best, bestScore = c, score
			}
		}
		classes[i] = best
	}

	return aggregateSpans(words, classes), nil
}

// aggregateSpans merges contiguous tokens of one tag family into a single span.
func aggregateSpans(words []wordSpan, classes []int) []Span {
	labelOf := func(class int) Label {
		switch class {
		case classBeginPerson, classInsidePerson:
			return LabelPerson
		case classBeginLocation, classInsideLocation:
			return LabelLocation
		}
		return ""
	}

	var spans []Span
	i := 0
	for i < len(words) {
		label := labelOf(classes[i])
		if label == "" {
			i++
			continue
		}
		j := i + 1
		for j < len(words) && labelOf(classes[j]) == label && classes[j] != classBeginPerson && classes[j] != classBeginLocation {
			j++
		}
		spans = append(spans, Span{Start: words[i].start, End: words[j-1].end, Label: label})
		i = j
	}
	return spans
}

// Close releases the session. The shared environment stays up for the process.
func (p *onnxProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
	p.ready = false
	return nil
}
