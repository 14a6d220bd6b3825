// Package persist provides codec-based flat-file persistence for cache
// artifacts. A missing artifact is a normal condition (the caches are
// rebuildable from upstream truth), distinguished via IsNotExist.
package persist

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
)

// File extensions for supported codecs.
const (
	jsonExtension   = ".json"
	gobExtension    = ".gob"
	lz4GobExtension = ".gob.lz4"
)

// Default indentation for pretty-printed JSON.
const defaultIndent = "  "

// Codec defines how an artifact is serialized and deserialized.
type Codec interface {
	// Encode writes the value to the writer.
	Encode(w io.Writer, value any) error
	// Decode reads the value from the reader.
	Decode(r io.Reader, value any) error
	// Extension returns the file extension for this codec.
	Extension() string
}

// JSONCodec implements Codec using JSON encoding with optional indentation.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with pretty-printing (2-space indent).
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, value any) error {
	err := json.NewDecoder(r).Decode(value)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// GobCodec implements Codec using gob encoding.
type GobCodec struct{}

// NewGobCodec creates a gob codec.
func NewGobCodec() *GobCodec {
	return &GobCodec{}
}

// Encode implements Codec.Encode using gob encoding.
func (c *GobCodec) Encode(w io.Writer, value any) error {
	err := gob.NewEncoder(w).Encode(value)
	if err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using gob decoding.
func (c *GobCodec) Decode(r io.Reader, value any) error {
	err := gob.NewDecoder(r).Decode(value)
	if err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for gob files.
func (c *GobCodec) Extension() string {
	return gobExtension
}

// LZ4GobCodec implements Codec using gob encoding behind an LZ4 frame.
// Raw event caches for large scopes compress well; full-corpus refreshes
// read every scope file, so smaller artifacts keep cold rebuilds fast.
type LZ4GobCodec struct{}

// NewLZ4GobCodec creates an LZ4-compressed gob codec.
func NewLZ4GobCodec() *LZ4GobCodec {
	return &LZ4GobCodec{}
}

// Encode implements Codec.Encode with LZ4 frame compression.
func (c *LZ4GobCodec) Encode(w io.Writer, value any) error {
	zw := lz4.NewWriter(w)

	encodeErr := gob.NewEncoder(zw).Encode(value)
	if encodeErr != nil {
		return fmt.Errorf("lz4 gob encode: %w", encodeErr)
	}

	err := zw.Close()
	if err != nil {
		return fmt.Errorf("lz4 flush: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode with LZ4 frame decompression.
func (c *LZ4GobCodec) Decode(r io.Reader, value any) error {
	err := gob.NewDecoder(lz4.NewReader(r)).Decode(value)
	if err != nil {
		return fmt.Errorf("lz4 gob decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for LZ4-compressed gob files.
func (c *LZ4GobCodec) Extension() string {
	return lz4GobExtension
}

// Save writes value to dir/basename with the codec's extension,
// creating dir if needed.
func Save(dir, basename string, codec Codec, value any) error {
	mkdirErr := os.MkdirAll(dir, 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create cache dir: %w", mkdirErr)
	}

	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer file.Close()

	encodeErr := codec.Encode(file, value)
	if encodeErr != nil {
		return fmt.Errorf("encode %s: %w", basename, encodeErr)
	}

	return nil
}

// Load reads dir/basename into value. The value parameter must be a
// pointer to the target. A missing file is reported as-is so callers
// can test it with IsNotExist.
func Load(dir, basename string, codec Codec, value any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	defer file.Close()

	decodeErr := codec.Decode(file, value)
	if decodeErr != nil {
		return fmt.Errorf("decode %s: %w", basename, decodeErr)
	}

	return nil
}

// Exists reports whether the artifact dir/basename is present.
func Exists(dir, basename string, codec Codec) bool {
	_, err := os.Stat(filepath.Join(dir, basename+codec.Extension()))

	return err == nil
}

// ModTime returns the artifact's last-modified time, or the zero time
// when the artifact is absent.
func ModTime(dir, basename string, codec Codec) (time.Time, error) {
	info, err := os.Stat(filepath.Join(dir, basename+codec.Extension()))
	if err != nil {
		return time.Time{}, fmt.Errorf("stat cache file: %w", err)
	}

	return info.ModTime(), nil
}

// List returns the basenames of all artifacts in dir matching the
// codec's extension, sorted. A missing directory yields an empty list.
func List(dir string, codec Codec) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	ext := codec.Extension()

	var names []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name, found := strings.CutSuffix(entry.Name(), ext)
		if found {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names, nil
}

// IsNotExist reports whether err denotes a missing cache artifact.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
