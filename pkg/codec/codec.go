package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	errs "igarchive/pkg/errors"
)

// DefaultEncodings is the decode chain used when none is configured.
// iso-8859-1 maps every byte and ends the chain before the lossy fallback.
var DefaultEncodings = []string{"utf-8", "utf-16le", "windows-1252", "iso-8859-1"}

// Latin1 is the strict ISO 8859-1 label. WHATWG folds it into windows-1252,
// which leaves 0x81, 0x8D, 0x8F, 0x90 and 0x9D undefined.
const Latin1 = "iso-8859-1"

// LossyEncoding names the last-resort decode that never fails
const LossyEncoding = "utf-8 (lossy)"

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

type candidate struct {
	name string
	enc  encoding.Encoding
}

// Codec decodes stored text by trying an ordered list of encodings and
// encodes values as canonical UTF-8 JSON.
type Codec struct {
	candidates []candidate
}

// New builds a Codec from WHATWG encoding labels, most preferred first
func New(labels ...string) (*Codec, error) {
	if len(labels) == 0 {
		labels = DefaultEncodings
	}

	c := &Codec{}
	seen := make(map[string]bool)
	for _, label := range labels {
		name, enc, err := lookup(label)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		c.candidates = append(c.candidates, candidate{name: name, enc: enc})
	}
	return c, nil
}

func lookup(label string) (string, encoding.Encoding, error) {
	if strings.EqualFold(strings.TrimSpace(label), Latin1) {
		return Latin1, charmap.ISO8859_1, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", nil, errs.Configf("unknown encoding %q", label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(label)
	}
	return name, enc, nil
}

// Default returns a Codec using DefaultEncodings
func Default() *Codec {
	c, err := New(DefaultEncodings...)
	if err != nil {
		panic(err)
	}
	return c
}

// Encodings returns the canonical names of the configured chain
func (c *Codec) Encodings() []string {
	names := make([]string, len(c.candidates))
	for i, cand := range c.candidates {
		names[i] = cand.name
	}
	return names
}

// DecodeText converts raw bytes to a string using the first encoding that
// accepts them. It never fails; when nothing fits, invalid sequences are
// replaced with U+FFFD and LossyEncoding is reported.
func (c *Codec) DecodeText(data []byte) (text string, used string) {
	data = bytes.TrimPrefix(data, utf8BOM)

	for _, cand := range c.candidates {
		if text, ok := cand.decode(data); ok {
			return text, cand.name
		}
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), LossyEncoding
}

// decode reports whether data is valid in the candidate encoding. Legacy
// single-byte decoders signal an unmapped byte with U+FFFD; UTF-16 decoders
// may carry a genuine U+FFFD, so only their error counts.
func (cand candidate) decode(data []byte) (string, bool) {
	switch cand.name {
	case "utf-8":
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	case "utf-16le", "utf-16be":
		bom := utf16LEBOM
		if cand.name == "utf-16be" {
			bom = utf16BEBOM
		}
		if !bytes.HasPrefix(data, bom) {
			return "", false
		}
		out, err := cand.enc.NewDecoder().Bytes(data[len(bom):])
		if err != nil {
			return "", false
		}
		return string(out), true
	}

	out, err := cand.enc.NewDecoder().Bytes(data)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// Decode parses stored bytes into a generic JSON value.
// Numbers are kept as json.Number.
func (c *Codec) Decode(data []byte) (any, error) {
	var v any
	if err := c.DecodeInto(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInto parses stored bytes into v, which must be a pointer
func (c *Codec) DecodeInto(data []byte, v any) error {
	text, _ := c.DecodeText(data)
	return unmarshal(strings.NewReader(text), v)
}

// Unmarshal decodes UTF-8 JSON from r into v, keeping numbers as json.Number.
// Trailing content after the first value is an error.
func Unmarshal(r io.Reader, v any) error {
	return unmarshal(r, v)
}

func unmarshal(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON: unexpected content after top-level value")
	}
	return nil
}

// Encode renders v as UTF-8 JSON with a two-space indent, no HTML escaping
// and a trailing newline.
func (c *Codec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return buf.Bytes(), nil
}
