// Package transform implements the key/value transform pipeline applied at
// the store boundary: symmetric pre/post functions for keys and for values.
//
// Two variants exist. Identity passes bytes through unchanged. Compressing
// encodes text keys as ISO-8859-1, text values as UTF-8, and compresses
// values with a configurable Codec, optionally framing each stored value
// with an XXH3 checksum.
//
// Pipelines are deterministic, side-effect free and safe for concurrent use.
package transform

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrCorrupt is returned by PostValue when a stored value cannot be decoded.
	ErrCorrupt = errors.New("transform: corrupt data")

	// ErrTextUnsupported is returned by the text entry points of the
	// Identity pipeline, which only accepts bytes.
	ErrTextUnsupported = errors.New("transform: text input not supported by identity pipeline")

	// ErrTextUnrepresentable is returned by KeyText for text containing
	// characters outside the key encoding.
	ErrTextUnrepresentable = errors.New("transform: text not representable in key encoding")
)

// Pipeline converts keys and values between their caller and stored forms.
//
// For all valid k and v:
//
//	PostKey(PreKey(k)) == k
//	PostValue(PreValue(v)) == v
type Pipeline interface {
	// PreKey maps a caller key to its stored form.
	PreKey(key []byte) []byte
	// PostKey maps a stored key back to the caller form.
	PostKey(key []byte) []byte
	// PreValue maps a caller value to its stored form.
	PreValue(value []byte) ([]byte, error)
	// PostValue maps a stored value back to the caller form. Undecodable
	// input fails with ErrCorrupt.
	PostValue(raw []byte) ([]byte, error)

	// KeyText normalizes a text key to bytes, ready for PreKey.
	KeyText(key string) ([]byte, error)
	// ValueText normalizes a text value to bytes, ready for PreValue.
	ValueText(value string) ([]byte, error)
	// KeyString renders a caller key as text, inverting KeyText.
	KeyString(key []byte) string

	// String describes the pipeline.
	String() string
}

// Identity is the pass-through pipeline.
type Identity struct{}

var _ Pipeline = Identity{}

func (Identity) PreKey(key []byte) []byte              { return key }
func (Identity) PostKey(key []byte) []byte             { return key }
func (Identity) PreValue(value []byte) ([]byte, error) { return value, nil }
func (Identity) PostValue(raw []byte) ([]byte, error)  { return raw, nil }
func (Identity) KeyText(string) ([]byte, error)        { return nil, ErrTextUnsupported }
func (Identity) ValueText(string) ([]byte, error)      { return nil, ErrTextUnsupported }
func (Identity) KeyString(key []byte) string           { return string(key) }
func (Identity) String() string                        { return "identity" }

// Options configures a Compressing pipeline.
type Options struct {
	// Codec is the value compression algorithm. The zero value is Gzip.
	Codec Codec
	// Level is the compression level in [MinLevel, MaxLevel]. Zero selects
	// MaxLevel. Snappy and Raw ignore it.
	Level int
	// Checksum appends an 8-byte XXH3 digest of the stored payload to each
	// value, verified on read.
	Checksum bool
}

// DefaultOptions returns gzip at MaxLevel without checksums.
func DefaultOptions() Options {
	return Options{Codec: Gzip, Level: MaxLevel}
}

// Compressing is the compressing pipeline. Keys are not compressed.
//
// Text keys are encoded as ISO-8859-1, one byte per character. Keys with
// characters outside Latin-1 are rejected with ErrTextUnrepresentable, so
// distinct text keys never map onto the same stored key.
type Compressing struct {
	opts  Options
	codec codec
}

var _ Pipeline = (*Compressing)(nil)

// NewCompressing returns a Compressing pipeline configured by opts.
func NewCompressing(opts Options) (*Compressing, error) {
	if opts.Level == 0 {
		opts.Level = MaxLevel
	}
	if !opts.Codec.IsSupported() {
		return nil, errors.Errorf("transform: unsupported codec %s", opts.Codec)
	}
	c, err := newCodec(opts.Codec, opts.Level)
	if err != nil {
		return nil, err
	}
	return &Compressing{opts: opts, codec: c}, nil
}

// Options returns the effective options.
func (p *Compressing) Options() Options { return p.opts }

func (p *Compressing) PreKey(key []byte) []byte  { return key }
func (p *Compressing) PostKey(key []byte) []byte { return key }

func (p *Compressing) PreValue(value []byte) ([]byte, error) {
	out, err := p.codec.compress(value)
	if err != nil {
		return nil, errors.WithMessagef(err, "transform: %s compress", p.opts.Codec)
	}
	if p.opts.Checksum {
		out = binary.LittleEndian.AppendUint64(out, xxh3.Hash(out))
	}
	return out, nil
}

func (p *Compressing) PostValue(raw []byte) ([]byte, error) {
	if p.opts.Checksum {
		if len(raw) < 8 {
			return nil, errors.WithMessagef(ErrCorrupt, "value of %d bytes has no checksum", len(raw))
		}
		var body, sum = raw[:len(raw)-8], binary.LittleEndian.Uint64(raw[len(raw)-8:])
		if got := xxh3.Hash(body); got != sum {
			return nil, errors.WithMessagef(ErrCorrupt, "checksum mismatch: stored %016x, computed %016x", sum, got)
		}
		raw = body
	}
	out, err := p.codec.decompress(raw)
	if err != nil {
		return nil, errors.WithMessagef(ErrCorrupt, "%s decompress: %v", p.opts.Codec, err)
	}
	return out, nil
}

func (p *Compressing) KeyText(key string) ([]byte, error) {
	// Encoders are stateful, so each call builds its own.
	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(key))
	if err != nil {
		return nil, errors.WithMessagef(ErrTextUnrepresentable, "latin-1 key %q: %v", key, err)
	}
	return out, nil
}

func (p *Compressing) ValueText(value string) ([]byte, error) { return []byte(value), nil }

func (p *Compressing) KeyString(key []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(key)
	if err != nil {
		// Every byte is a valid Latin-1 character.
		return string(key)
	}
	return string(out)
}

func (p *Compressing) String() string {
	var s = p.opts.Codec.String()
	if p.opts.Codec != Snappy && p.opts.Codec != Raw {
		s += "-" + string(rune('0'+p.opts.Level))
	}
	if p.opts.Checksum {
		s += "+xxh3"
	}
	return s
}
