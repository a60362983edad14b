package transform

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Codec selects the value compression algorithm of a Compressing pipeline.
type Codec uint8

const (
	// Gzip is RFC 1952 gzip, the default. Values are byte compatible with
	// stores written by other gzip-based lmdbm implementations.
	Gzip Codec = iota
	// Zlib is RFC 1950 zlib.
	Zlib
	// Snappy is Google Snappy block format. It has no levels.
	Snappy
	// LZ4 is the LZ4 frame format.
	LZ4
	// Zstd is Zstandard.
	Zstd
	// Raw stores values uncompressed. Useful together with checksums.
	Raw
)

const (
	// MinLevel is the fastest compression level.
	MinLevel = 1
	// MaxLevel is the strongest compression level, and the default.
	MaxLevel = 9
)

// String returns the human-readable name of the codec.
func (c Codec) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec returns the Codec named by s, as produced by Codec.String.
func ParseCodec(s string) (Codec, error) {
	for c := Gzip; c <= Raw; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, errors.Errorf("transform: unknown codec %q", s)
}

// IsSupported returns true if the codec is implemented.
func (c Codec) IsSupported() bool { return c <= Raw }

// codec is a configured compressor. Implementations are safe for concurrent use.
type codec interface {
	compress(data []byte) ([]byte, error)
	decompress(data []byte) ([]byte, error)
}

func newCodec(c Codec, level int) (codec, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, errors.Errorf("transform: level %d outside [%d, %d]", level, MinLevel, MaxLevel)
	}
	switch c {
	case Gzip:
		return gzipCodec{level: level}, nil
	case Zlib:
		return zlibCodec{level: level}, nil
	case Snappy:
		return snappyCodec{}, nil
	case LZ4:
		// lz4.Level1 through lz4.Level9 are successive powers of two from 1<<8.
		return lz4Codec{level: lz4.CompressionLevel(1 << (7 + level))}, nil
	case Zstd:
		return newZstdCodec(level)
	case Raw:
		return rawCodec{}, nil
	default:
		return nil, errors.Errorf("transform: unsupported codec %s", c)
	}
}

type gzipCodec struct{ level int }

func (g gzipCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, errors.WithMessage(err, "gzip writer")
	}
	if _, err = w.Write(data); err != nil {
		return nil, errors.WithMessage(err, "gzip write")
	}
	if err = w.Close(); err != nil {
		return nil, errors.WithMessage(err, "gzip close")
	}
	return buf.Bytes(), nil
}

func (gzipCodec) decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

type zlibCodec struct{ level int }

func (z zlibCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, z.level)
	if err != nil {
		return nil, errors.WithMessage(err, "zlib writer")
	}
	if _, err = w.Write(data); err != nil {
		return nil, errors.WithMessage(err, "zlib write")
	}
	if err = w.Close(); err != nil {
		return nil, errors.WithMessage(err, "zlib close")
	}
	return buf.Bytes(), nil
}

func (zlibCodec) decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

type snappyCodec struct{}

func (snappyCodec) compress(data []byte) ([]byte, error)   { return snappy.Encode(nil, data), nil }
func (snappyCodec) decompress(data []byte) ([]byte, error) { return snappy.Decode(nil, data) }

type lz4Codec struct{ level lz4.CompressionLevel }

func (l lz4Codec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(l.level)); err != nil {
		return nil, errors.WithMessage(err, "lz4 apply level")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.WithMessage(err, "lz4 write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.WithMessage(err, "lz4 close")
	}
	return buf.Bytes(), nil
}

func (lz4Codec) decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// zstdCodec keeps one encoder and decoder; EncodeAll and DecodeAll are
// safe for concurrent use.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec(level int) (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, errors.WithMessage(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.WithMessage(err, "zstd decoder")
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (z *zstdCodec) compress(data []byte) ([]byte, error) { return z.enc.EncodeAll(data, nil), nil }

func (z *zstdCodec) decompress(data []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	} else if out == nil {
		out = []byte{}
	}
	return out, nil
}

type rawCodec struct{}

func (rawCodec) compress(data []byte) ([]byte, error)   { return bytes.Clone(data), nil }
func (rawCodec) decompress(data []byte) ([]byte, error) { return bytes.Clone(data), nil }
