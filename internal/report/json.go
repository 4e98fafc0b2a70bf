package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs the summary as JSON.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables two-space indented output.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonSummary adds computed totals to Summary.
type jsonSummary struct {
	*Summary
	TotalWords     int   `json:"total_words"`
	TotalCacheSize int64 `json:"total_cache_size"`
	Formatted      int   `json:"formatted"`
}

// Write outputs the summary in JSON format with a trailing newline.
func (w *JSONWriter) Write(s *Summary) (int, error) {
	v := jsonSummary{
		Summary:        s,
		TotalWords:     s.TotalWords(),
		TotalCacheSize: s.TotalCacheSize(),
		Formatted:      s.FormattedCount(),
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
