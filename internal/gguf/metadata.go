// Package gguf reads the key-value metadata header of a GGUF model file
// (component C). It never parses tensor data and never panics on
// adversarial input: parsing is best-effort and always returns whatever
// was collected before a malformed field was hit, per spec §4.C.
package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// headerReadLimit caps how much of the file we read (§4.C: "first 64 KiB").
const headerReadLimit = 64 * 1024

const magic = "GGUF"

// valueKind mirrors the subset of GGUF value kinds this extractor supports.
type valueKind uint32

const (
	kindU8 valueKind = iota
	kindI8
	kindU16
	kindI16
	kindU32
	kindI32
	kindF32
	kindBool
	kindString
	kindArray
	kindU64
	kindI64
	kindF64
)

// Metadata is the subset of the GGUF header this extractor recovers.
type Metadata struct {
	Version             uint32
	TensorCount         uint64
	NativeContextTokens *uint64
	EmbeddingDimension  *uint64
}

// contextLengthSuffixes and embeddingLengthSuffixes list suffixes/exact keys that
// identify the two numeric fields the spec cares about (§4.C). Key
// matching is by exact equality or suffix, so "<arch>.context_length"
// matches any architecture prefix.
var contextLengthSuffixes = []string{".context_length", "n_ctx", "max_position_embeddings"}
var embeddingLengthSuffixes = []string{".embedding_length", "n_embd"}

// Extract reads and parses the GGUF header at path. On any malformed
// field it returns the partial Metadata collected so far and a non-nil
// error describing where parsing stopped; callers should treat a non-nil
// error as "fall back to filename heuristics", not as a fatal failure.
func Extract(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(io.LimitReader(f, headerReadLimit), headerReadLimit)

	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magicBuf) != magic {
		return nil, fmt.Errorf("bad magic %q", magicBuf)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}

	var tensorCount, kvCount uint64
	if err := binary.Read(r, binary.LittleEndian, &tensorCount); err != nil {
		return &Metadata{Version: version}, fmt.Errorf("read tensor count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &kvCount); err != nil {
		return &Metadata{Version: version, TensorCount: tensorCount}, fmt.Errorf("read kv count: %w", err)
	}

	md := &Metadata{Version: version, TensorCount: tensorCount}

	for i := uint64(0); i < kvCount; i++ {
		key, err := readGGUFString(r)
		if err != nil {
			return md, fmt.Errorf("kv %d: read key: %w", i, err)
		}

		var kind uint32
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			return md, fmt.Errorf("kv %d (%s): read kind: %w", i, key, err)
		}

		value, isNumeric, err := readGGUFValue(r, valueKind(kind))
		if err != nil {
			return md, fmt.Errorf("kv %d (%s): read value: %w", i, key, err)
		}

		if !isNumeric {
			continue
		}
		switch {
		case md.NativeContextTokens == nil && matchesAny(key, contextLengthSuffixes):
			v := value
			md.NativeContextTokens = &v
		case md.EmbeddingDimension == nil && matchesAny(key, embeddingLengthSuffixes):
			v := value
			md.EmbeddingDimension = &v
		}
	}

	return md, nil
}

func matchesAny(key string, suffixes []string) bool {
	lower := strings.ToLower(key)
	for _, s := range suffixes {
		if lower == s || strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// readGGUFValue reads one value of the given kind. Arrays are read and
// skipped (§4.C: "array (read-and-skip only)"). Returns (value, isNumeric).
func readGGUFValue(r io.Reader, kind valueKind) (uint64, bool, error) {
	switch kind {
	case kindU8, kindI8, kindBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, false, err
		}
		return uint64(b[0]), kind != kindBool, nil
	case kindU16, kindI16:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, false, err
		}
		return uint64(v), true, nil
	case kindU32, kindI32:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, false, err
		}
		return uint64(v), true, nil
	case kindF32:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	case kindU64, kindI64:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, false, err
		}
		return v, true, nil
	case kindF64:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	case kindString:
		_, err := readGGUFString(r)
		return 0, false, err
	case kindArray:
		return 0, false, skipGGUFArray(r)
	default:
		return 0, false, fmt.Errorf("unsupported value kind %d", kind)
	}
}

func readGGUFString(r io.Reader) (string, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	// Guard against absurd lengths from corrupt input; headerReadLimit is
	// the largest sane buffer we'd ever need.
	if length > headerReadLimit {
		return "", fmt.Errorf("implausible string length %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// skipGGUFArray reads an array's element kind and count, then reads (and
// discards) each element without allocating the whole array.
func skipGGUFArray(r io.Reader) error {
	var elemKind uint32
	if err := binary.Read(r, binary.LittleEndian, &elemKind); err != nil {
		return err
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		if _, _, err := readGGUFValue(r, valueKind(elemKind)); err != nil {
			return fmt.Errorf("array element %d: %w", i, err)
		}
	}
	return nil
}
