package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
)

type Reader struct {
	filePath string
	header   SegmentHeader
	body     []byte
}

// OpenReader loads a segment and verifies its header and checksum.
func OpenReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("invalid segment file %s: truncated", path)
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:     magic,
		Version:   binary.LittleEndian.Uint32(data[4:8]),
		DocCount:  binary.LittleEndian.Uint32(data[8:12]),
		CreatedAt: int64(binary.LittleEndian.Uint64(data[12:20])),
		BodySize:  int64(binary.LittleEndian.Uint64(data[20:28])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	if int64(len(data)) != int64(HeaderSize)+header.BodySize+int64(FooterSize) {
		return nil, fmt.Errorf("invalid segment file %s: size mismatch", path)
	}
	body := data[HeaderSize : int64(HeaderSize)+header.BodySize]
	footer := data[int64(HeaderSize)+header.BodySize:]
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(body) {
		return nil, fmt.Errorf("segment %s checksum mismatch", path)
	}
	if n := binary.LittleEndian.Uint32(footer[4:8]); n != header.DocCount {
		return nil, fmt.Errorf("segment %s doc count mismatch: header %d, footer %d", path, header.DocCount, n)
	}
	return &Reader{filePath: path, header: header, body: body}, nil
}

// Each calls fn for every document in write order and stops at the first
// error.
func (r *Reader) Each(fn func(ingestion.Document) error) error {
	dec, err := zstd.NewReader(bytes.NewReader(r.body))
	if err != nil {
		return fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	jsonDec := json.NewDecoder(dec)
	var n uint32
	for {
		var doc ingestion.Document
		if err := jsonDec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decoding document %d of %s: %w", n, r.filePath, err)
		}
		if err := fn(doc); err != nil {
			return err
		}
		n++
	}
	if n != r.header.DocCount {
		return fmt.Errorf("segment %s holds %d documents, header says %d", r.filePath, n, r.header.DocCount)
	}
	return nil
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Path() string {
	return r.filePath
}

// List returns the segment files in dir in write order.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "seg_*"+Extension))
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
