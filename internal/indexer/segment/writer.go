// Package segment writes and reads spill segments: files holding documents a
// write session buffered past its heap budget. Spill segments live in a
// private directory and are never visible to searchers.
package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
)

// MagicBytes identifies a valid .spill segment file.
const (
	MagicBytes    uint32 = 0x53504c4c
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 8
)

// Extension is the file suffix of spill segments.
const Extension = ".spill"

// SegmentHeader is the fixed-size header written at the start of every
// segment.
type SegmentHeader struct {
	Magic     uint32
	Version   uint32
	DocCount  uint32
	CreatedAt int64
	BodySize  int64
}

// Writer serialises document batches into numbered segment files. Segment
// names sort in write order.
type Writer struct {
	dataDir string
	seq     int
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file holding docs in order. It
// writes to a .tmp file first and renames on success.
func (w *Writer) Write(docs []ingestion.Document) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	body, err := encodeBody(docs)
	if err != nil {
		return "", err
	}

	segmentName := fmt.Sprintf("seg_%06d%s", w.seq, Extension)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		DocCount:  uint32(len(docs)),
		CreatedAt: time.Now().Unix(),
		BodySize:  int64(len(body)),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.DocCount)
	binary.LittleEndian.PutUint64(headerBytes[12:20], uint64(header.CreatedAt))
	binary.LittleEndian.PutUint64(headerBytes[20:28], uint64(header.BodySize))
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		return "", fmt.Errorf("writing body: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(body))
	binary.LittleEndian.PutUint32(footer[4:8], header.DocCount)
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	w.seq++
	return segmentName, nil
}

// encodeBody writes one JSON document per line through a zstd encoder.
func encodeBody(docs []ingestion.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	jsonEnc := json.NewEncoder(enc)
	for i, doc := range docs {
		if err := jsonEnc.Encode(doc); err != nil {
			enc.Close()
			return nil, fmt.Errorf("encoding document %d: %w", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flushing zstd encoder: %w", err)
	}
	return buf.Bytes(), nil
}
