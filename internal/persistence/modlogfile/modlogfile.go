// Package modlogfile stores a modification log as JSON, zstd-compressed
// when the file name ends in ".zst".
package modlogfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelsim/internal/modlog"
)

// schemaJSON checks the document shape. Key syntax is left to
// modlog.Decode so one malformed key does not reject the whole file.
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "additionalProperties": {
      "type": "integer",
      "minimum": -1,
      "maximum": 65535
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("modifications.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

func compressed(path string) bool { return strings.HasSuffix(path, ".zst") }

// Write saves l to path through a temporary file and a rename, so a crash
// never leaves a truncated log behind.
func Write(path string, l *modlog.Log) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, l, compressed(path)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func encode(w io.Writer, l *modlog.Log, zst bool) error {
	var enc *zstd.Encoder
	if zst {
		var err error
		enc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		w = enc
	}
	bw := bufio.NewWriterSize(w, 64*1024)
	if err := json.NewEncoder(bw).Encode(modlog.Encode(l)); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

// Read loads a log from path. It returns the number of entries skipped
// because their chunk or cell key did not parse. A document that fails the
// schema is rejected as a whole.
func Read(path string) (*modlog.Log, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 64*1024)
	if compressed(path) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	l, skipped, err := Decode(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return l, skipped, nil
}

// Decode validates and decodes an uncompressed JSON document.
func Decode(raw []byte) (*modlog.Log, int, error) {
	s, err := compiled()
	if err != nil {
		return nil, 0, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, 0, fmt.Errorf("json decode: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, 0, fmt.Errorf("schema: %w", err)
	}
	var doc modlog.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, fmt.Errorf("json decode: %w", err)
	}
	l, skipped := modlog.Decode(doc)
	return l, skipped, nil
}
