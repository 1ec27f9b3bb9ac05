// Package ingestion defines the document representation shared by the write
// path and the result serializer, and the Kafka event carrying documents to
// a feeder.
package ingestion

import (
	"encoding/json"
	"time"
)

// Document is a validated document: field name to one or more string values.
// Values keep their input order.
type Document struct {
	Fields map[string][]string `json:"fields"`
}

// perValueOverhead approximates the bookkeeping a buffered value costs on top
// of its bytes.
const perValueOverhead = 48

// Size estimates the memory a buffered document occupies.
func (d Document) Size() int {
	n := perValueOverhead
	for name, values := range d.Fields {
		for _, v := range values {
			n += len(name) + len(v) + perValueOverhead
		}
	}
	return n
}

// Indexable converts the document into the shape the bleve mapping walks:
// single values as strings, multiple values as string slices.
func (d Document) Indexable() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Fields))
	for name, values := range d.Fields {
		switch len(values) {
		case 0:
		case 1:
			out[name] = values[0]
		default:
			out[name] = append([]string(nil), values...)
		}
	}
	return out
}

// IngestEvent is the Kafka message payload consumed by the feeder. Document
// holds the raw JSON object exactly as AddDocument accepts it.
type IngestEvent struct {
	Key        string          `json:"key,omitempty"`
	Document   json.RawMessage `json:"document"`
	IngestedAt time.Time       `json:"ingested_at"`
}

// IngestRequest is one document submitted for asynchronous indexing. Key is
// the Kafka partition key; an empty key is replaced by the content hash.
type IngestRequest struct {
	Key      string          `json:"key,omitempty"`
	Document json.RawMessage `json:"document"`
}

// IngestResponse acknowledges a queued document.
type IngestResponse struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}
