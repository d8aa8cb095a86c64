// Package textfile classifies file content as ANSI, UTF-8, UTF-16 or binary
// and decodes text files into UTF-8 for the character matcher.
package textfile

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/harrison/grepwin/internal/models"
)

// DetectionSampleSize is the prefix length examined by the classifier.
const DetectionSampleSize = 4096

// BOM byte sequences.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectOptions tunes the classifier.
type DetectOptions struct {
	// ForceBinary skips detection entirely.
	ForceBinary bool
	// ForceUTF8 resolves the UTF-8 / ANSI ambiguity in favor of UTF-8.
	ForceUTF8 bool
	// NullBytesPerMiB scales the NUL budget: a file whose sample contains
	// more than NullBytesPerMiB * (sizeMiB + 1) NUL bytes is binary.
	// Zero means any NUL byte marks the file binary.
	NullBytesPerMiB int
	// FileSize is the total file size used for budget scaling.
	FileSize int64
}

// Detect classifies a content sample. BOM wins; otherwise NUL bytes are
// counted against the scaled budget; otherwise the sample is checked for
// UTF-8 validity. An incomplete rune at the end is tolerated only when the
// sample is a prefix of a longer file.
func Detect(sample []byte, opts DetectOptions) models.Encoding {
	if opts.ForceBinary {
		return models.EncodingBinary
	}
	truncated := len(sample) > DetectionSampleSize || opts.FileSize > int64(len(sample))
	if len(sample) > DetectionSampleSize {
		sample = sample[:DetectionSampleSize]
	}

	switch {
	case bytes.HasPrefix(sample, bomUTF8):
		return models.EncodingUTF8
	case bytes.HasPrefix(sample, bomUTF16LE):
		return models.EncodingUTF16LE
	case bytes.HasPrefix(sample, bomUTF16BE):
		return models.EncodingUTF16BE
	}

	if nulls := bytes.Count(sample, []byte{0}); nulls > 0 {
		budget := 0
		if opts.NullBytesPerMiB > 0 {
			megs := int(opts.FileSize / (1 << 20))
			budget = opts.NullBytesPerMiB * (megs + 1)
		}
		if nulls > budget {
			return models.EncodingBinary
		}
	}

	if opts.ForceUTF8 || utf8.Valid(sample) || (truncated && validUTF8Sample(sample)) {
		return models.EncodingUTF8
	}
	return models.EncodingAnsi
}

// validUTF8Sample validates a sample, tolerating a rune truncated by the
// sample boundary.
func validUTF8Sample(sample []byte) bool {
	// Drop up to three trailing continuation bytes of an incomplete rune.
	end := len(sample)
	for i := 0; i < 3 && end > 0; i++ {
		if r, _ := utf8.DecodeLastRune(sample[:end]); r != utf8.RuneError {
			break
		}
		end--
	}
	return utf8.Valid(sample[:end])
}

// File is a fully decoded text file.
type File struct {
	Encoding models.Encoding
	HasBOM   bool
	Content  string
}

// Load reads and decodes a whole file. The caller is responsible for routing
// files that are too large, or classified binary, to the byte matcher
// instead. A load observed as cancelled returns an error, so the file is
// reported as a read error.
func Load(path string, opts DetectOptions, cancelled func() bool) (*File, error) {
	if cancelled != nil && cancelled() {
		return nil, fmt.Errorf("load of %s cancelled", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if cancelled != nil && cancelled() {
		return nil, fmt.Errorf("load of %s cancelled", path)
	}

	enc := Detect(data, opts)
	content, hasBOM, err := Decode(data, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &File{Encoding: enc, HasBOM: hasBOM, Content: content}, nil
}

// Decode converts raw file bytes of the given encoding into a UTF-8 string,
// stripping any BOM. Binary content passes through unchanged.
func Decode(data []byte, enc models.Encoding) (string, bool, error) {
	hasBOM := false
	switch enc {
	case models.EncodingUTF8:
		if bytes.HasPrefix(data, bomUTF8) {
			data = data[len(bomUTF8):]
			hasBOM = true
		}
		return string(data), hasBOM, nil
	case models.EncodingUTF16LE, models.EncodingUTF16BE:
		bom := bomUTF16LE
		if enc == models.EncodingUTF16BE {
			bom = bomUTF16BE
		}
		if bytes.HasPrefix(data, bom) {
			data = data[len(bom):]
			hasBOM = true
		}
		decoded, err := decoderFor(enc).Bytes(data)
		if err != nil {
			return "", hasBOM, err
		}
		return string(decoded), hasBOM, nil
	case models.EncodingAnsi:
		decoded, err := decoderFor(enc).Bytes(data)
		if err != nil {
			return "", false, err
		}
		return string(decoded), false, nil
	default:
		return string(data), false, nil
	}
}

// DecodeString decodes a byte slice without BOM handling; used for line
// texts extracted from byte-mode scans.
func DecodeString(data []byte, enc models.Encoding) string {
	switch enc {
	case models.EncodingUTF16LE, models.EncodingUTF16BE, models.EncodingAnsi:
		decoded, err := decoderFor(enc).Bytes(data)
		if err != nil {
			return string(data)
		}
		return string(decoded)
	default:
		return string(data)
	}
}

// Encode converts a UTF-8 string back to raw file bytes of the given
// encoding, prepending a BOM when the original file had one.
func Encode(content string, enc models.Encoding, withBOM bool) ([]byte, error) {
	switch enc {
	case models.EncodingUTF16LE, models.EncodingUTF16BE:
		encoded, err := encoderFor(enc).Bytes([]byte(content))
		if err != nil {
			return nil, err
		}
		if withBOM {
			bom := bomUTF16LE
			if enc == models.EncodingUTF16BE {
				bom = bomUTF16BE
			}
			return append(append([]byte{}, bom...), encoded...), nil
		}
		return encoded, nil
	case models.EncodingAnsi:
		return encoderFor(enc).Bytes([]byte(content))
	default:
		if withBOM && enc == models.EncodingUTF8 {
			return append(append([]byte{}, bomUTF8...), content...), nil
		}
		return []byte(content), nil
	}
}

// EncodeString is Encode without BOM handling; used for byte-space needles
// and replacement fragments.
func EncodeString(content string, enc models.Encoding) ([]byte, error) {
	return Encode(content, enc, false)
}

func decoderFor(enc models.Encoding) *encoding.Decoder {
	switch enc {
	case models.EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case models.EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		return charmap.Windows1252.NewDecoder()
	}
}

func encoderFor(enc models.Encoding) *encoding.Encoder {
	switch enc {
	case models.EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	case models.EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	default:
		return charmap.Windows1252.NewEncoder()
	}
}
