package transform

import (
	"bytes"
	"errors"
	"testing"
)

var allCodecs = []Codec{Gzip, Zlib, Snappy, LZ4, Zstd, Raw}

func newPipeline(t *testing.T, opts Options) *Compressing {
	t.Helper()
	p, err := NewCompressing(opts)
	if err != nil {
		t.Fatalf("NewCompressing(%+v): %v", opts, err)
	}
	return p
}

func TestIdentityIsPassThrough(t *testing.T) {
	var p Pipeline = Identity{}
	data := []byte("hello world")

	if got := p.PostKey(p.PreKey(data)); !bytes.Equal(got, data) {
		t.Errorf("key round trip = %q", got)
	}
	stored, err := p.PreValue(data)
	if err != nil {
		t.Fatalf("PreValue: %v", err)
	}
	if !bytes.Equal(stored, data) {
		t.Error("identity PreValue must not change data")
	}
	if got, _ := p.PostValue(stored); !bytes.Equal(got, data) {
		t.Errorf("value round trip = %q", got)
	}
}

func TestIdentityRejectsText(t *testing.T) {
	var p Pipeline = Identity{}
	if _, err := p.KeyText("k"); !errors.Is(err, ErrTextUnsupported) {
		t.Errorf("KeyText err = %v, want ErrTextUnsupported", err)
	}
	if _, err := p.ValueText("v"); !errors.Is(err, ErrTextUnsupported) {
		t.Errorf("ValueText err = %v, want ErrTextUnsupported", err)
	}
}

func TestCompressingRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":      {},
		"short":      []byte("v"),
		"repetitive": bytes.Repeat([]byte("lmdbm compressing value "), 200),
		"binary":     {0x00, 0xff, 0x1f, 0x8b, 0x08, 0x00},
	}

	for _, codec := range allCodecs {
		for _, checksum := range []bool{false, true} {
			p := newPipeline(t, Options{Codec: codec, Checksum: checksum})
			for name, data := range inputs {
				stored, err := p.PreValue(data)
				if err != nil {
					t.Fatalf("%s/%s: PreValue: %v", p, name, err)
				}
				got, err := p.PostValue(stored)
				if err != nil {
					t.Fatalf("%s/%s: PostValue: %v", p, name, err)
				}
				if !bytes.Equal(got, data) {
					t.Errorf("%s/%s: round trip mismatch", p, name)
				}
			}
		}
	}
}

func TestCompressingShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("hello world "), 100)

	for _, codec := range []Codec{Gzip, Zlib, Snappy, LZ4, Zstd} {
		p := newPipeline(t, Options{Codec: codec})
		stored, err := p.PreValue(data)
		if err != nil {
			t.Fatalf("%s: %v", codec, err)
		}
		t.Logf("%s: %d -> %d bytes (%.1f%%)", p, len(data), len(stored),
			float64(len(stored))/float64(len(data))*100)
		if len(stored) >= len(data) {
			t.Errorf("%s: stored %d bytes for %d input bytes", codec, len(stored), len(data))
		}
	}
}

func TestGzipIsStandardGzip(t *testing.T) {
	p := newPipeline(t, DefaultOptions())
	stored, err := p.PreValue([]byte("value"))
	if err != nil {
		t.Fatal(err)
	}
	// RFC 1952 magic and deflate method.
	if len(stored) < 3 || stored[0] != 0x1f || stored[1] != 0x8b || stored[2] != 0x08 {
		t.Errorf("stored value is not gzip: % x", stored[:min(len(stored), 8)])
	}
}

func TestPipelineIsDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("deterministic "), 64)
	for _, codec := range allCodecs {
		p := newPipeline(t, Options{Codec: codec, Checksum: true})
		a, _ := p.PreValue(data)
		b, _ := p.PreValue(data)
		if !bytes.Equal(a, b) {
			t.Errorf("%s: PreValue is not deterministic", codec)
		}
	}
}

func TestPostValueRejectsMalformedInput(t *testing.T) {
	garbage := []byte("definitely not a compressed payload")

	for _, codec := range []Codec{Gzip, Zlib, Snappy, LZ4, Zstd} {
		p := newPipeline(t, Options{Codec: codec})
		if _, err := p.PostValue(garbage); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: err = %v, want ErrCorrupt", codec, err)
		}
	}
}

func TestPostValueTruncatedGzip(t *testing.T) {
	p := newPipeline(t, DefaultOptions())
	stored, err := p.PreValue(bytes.Repeat([]byte("abc"), 100))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.PostValue(stored[:len(stored)/2]); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestChecksumDetectsBitFlip(t *testing.T) {
	p := newPipeline(t, Options{Codec: Raw, Checksum: true})
	stored, err := p.PreValue([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != len("payload")+8 {
		t.Fatalf("stored %d bytes, want payload plus 8", len(stored))
	}

	stored[0] ^= 0xff
	if _, err := p.PostValue(stored); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
	if _, err := p.PostValue([]byte{1, 2, 3}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("short value err = %v, want ErrCorrupt", err)
	}
}

func TestKeyTextLatin1(t *testing.T) {
	p := newPipeline(t, DefaultOptions())

	tests := []struct {
		in   string
		want []byte
	}{
		{"plain", []byte("plain")},
		{"café", []byte{'c', 'a', 'f', 0xe9}},
		{"\u00ff\u00a0", []byte{0xff, 0xa0}},
	}
	for _, tt := range tests {
		got, err := p.KeyText(tt.in)
		if err != nil {
			t.Fatalf("KeyText(%q): %v", tt.in, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("KeyText(%q) = % x, want % x", tt.in, got, tt.want)
		}
		stored := p.PreKey(got)
		if s := p.KeyString(p.PostKey(stored)); s != tt.in {
			t.Errorf("KeyString round trip = %q, want %q", s, tt.in)
		}
	}
}

func TestKeyTextOutsideLatin1IsRejected(t *testing.T) {
	p := newPipeline(t, DefaultOptions())

	for _, in := range []string{"snow☃man", "日", "本"} {
		got, err := p.KeyText(in)
		if !errors.Is(err, ErrTextUnrepresentable) {
			t.Errorf("KeyText(%q) = % x, %v; want ErrTextUnrepresentable", in, got, err)
		}
	}
}

func TestValueTextIsUTF8(t *testing.T) {
	p := newPipeline(t, Options{Codec: Zstd})

	raw, err := p.ValueText("snow☃man")
	if err != nil {
		t.Fatal(err)
	}
	stored, err := p.PreValue(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.PostValue(stored)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "snow☃man" {
		t.Errorf("text value round trip = %q", got)
	}
}

func TestNewCompressingValidation(t *testing.T) {
	if _, err := NewCompressing(Options{Codec: Gzip, Level: 10}); err == nil {
		t.Error("expected error for level 10")
	}
	if _, err := NewCompressing(Options{Codec: Gzip, Level: -1}); err == nil {
		t.Error("expected error for level -1")
	}
	if _, err := NewCompressing(Options{Codec: Codec(42)}); err == nil {
		t.Error("expected error for unknown codec")
	}

	p := newPipeline(t, Options{})
	if p.Options().Level != MaxLevel || p.Options().Codec != Gzip {
		t.Errorf("zero options resolved to %+v", p.Options())
	}
}

func TestCodecStringAndParse(t *testing.T) {
	for _, codec := range allCodecs {
		got, err := ParseCodec(codec.String())
		if err != nil || got != codec {
			t.Errorf("ParseCodec(%q) = %v, %v", codec.String(), got, err)
		}
	}
	if _, err := ParseCodec("bzip2"); err == nil {
		t.Error("expected error for bzip2")
	}
	if got := Codec(99).String(); got != "unknown(99)" {
		t.Errorf("Codec(99).String() = %q", got)
	}
}

func TestPipelineString(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{DefaultOptions(), "gzip-9"},
		{Options{Codec: Zstd, Level: 3}, "zstd-3"},
		{Options{Codec: Snappy, Checksum: true}, "snappy+xxh3"},
	}
	for _, tt := range tests {
		if got := newPipeline(t, tt.opts).String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := (Identity{}).String(); got != "identity" {
		t.Errorf("Identity.String() = %q", got)
	}
}
