package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
)

// StatusIndexed is reported for documents committed synchronously.
const StatusIndexed = "INDEXED"

// IndexWriter is satisfied by *sanesearch.Session.
type IndexWriter interface {
	AddDocument(jsonText string) error
	Commit() error
}

// Direct writes documents straight into a local session and commits each
// request, for deployments without Kafka.
type Direct struct {
	mu     sync.Mutex
	writer IndexWriter
}

func NewDirect(w IndexWriter) *Direct {
	return &Direct{writer: w}
}

func (d *Direct) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	resp, err := d.IngestBatch(ctx, []ingestion.IngestRequest{*req})
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

// IngestBatch adds every document and commits once. A document that fails
// validation stops the batch; documents added before it stay pending until
// the next successful commit.
func (d *Direct) IngestBatch(_ context.Context, reqs []ingestion.IngestRequest) ([]ingestion.IngestResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp := make([]ingestion.IngestResponse, len(reqs))
	for i, req := range reqs {
		if err := d.writer.AddDocument(string(req.Document)); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		key := req.Key
		if key == "" {
			key = ContentKey(req.Document)
		}
		resp[i] = ingestion.IngestResponse{Key: key, Status: StatusIndexed}
	}
	if err := d.writer.Commit(); err != nil {
		return nil, err
	}
	return resp, nil
}
