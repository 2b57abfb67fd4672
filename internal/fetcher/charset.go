package fetcher

import (
	"bytes"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultFallbackCharset is used for legacy exports that are not UTF-8.
const DefaultFallbackCharset = "windows-1252"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText returns data as UTF-8 along with the charset it was read as.
// Valid UTF-8 passes through with any byte-order mark removed; anything
// else is decoded with the fallback charset (any WHATWG label, e.g.
// "windows-1252", "iso-8859-1").
func DecodeText(data []byte, fallback string) ([]byte, string, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, utf8BOM), "utf-8", nil
	}

	if fallback == "" {
		fallback = DefaultFallbackCharset
	}
	enc, err := htmlindex.Get(fallback)
	if err != nil {
		return nil, "", eris.Wrapf(err, "charset: unsupported charset %q", fallback)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", eris.Wrapf(err, "charset: decode as %s", fallback)
	}

	name, err := htmlindex.Name(enc)
	if err != nil {
		name = fallback
	}
	return out, name, nil
}
