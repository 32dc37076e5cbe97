package shapefile

import (
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// defaultCodePage is assumed when neither a .cpg hint nor a language driver is present.
const defaultCodePage = 1252

// .cpg contents as written by ArcGIS, e.g. "UTF-8", "ANSI 1252", "ISO 88591".
var (
	reUTF8 = regexp.MustCompile(`(?i)^.*UTF[-\s]?8\s*$`)
	reANSI = regexp.MustCompile(`(?i)^.*ANSI\s*(\d+)\s*$`)
	reISO  = regexp.MustCompile(`(?i)^.*ISO\s*8859(\d)\s*$`)
)

// CodePages maps a numeric codepage id to a text encoding.
type CodePages map[int]encoding.Encoding

// LanguageDrivers maps a .dbf language driver id to a codepage id.
type LanguageDrivers map[byte]int

// DefaultCodePages returns the codepages that golang.org/x/text can decode.
func DefaultCodePages() CodePages {
	return CodePages{
		437:   charmap.CodePage437,
		850:   charmap.CodePage850,
		852:   charmap.CodePage852,
		855:   charmap.CodePage855,
		858:   charmap.CodePage858,
		860:   charmap.CodePage860,
		862:   charmap.CodePage862,
		863:   charmap.CodePage863,
		865:   charmap.CodePage865,
		866:   charmap.CodePage866,
		874:   charmap.Windows874,
		932:   japanese.ShiftJIS,
		936:   simplifiedchinese.GBK,
		949:   korean.EUCKR,
		950:   traditionalchinese.Big5,
		1250:  charmap.Windows1250,
		1251:  charmap.Windows1251,
		1252:  charmap.Windows1252,
		1253:  charmap.Windows1253,
		1254:  charmap.Windows1254,
		1255:  charmap.Windows1255,
		1256:  charmap.Windows1256,
		1257:  charmap.Windows1257,
		1258:  charmap.Windows1258,
		10000: charmap.Macintosh,
		10007: charmap.MacintoshCyrillic,
		20866: charmap.KOI8R,
		21866: charmap.KOI8U,
		28591: charmap.ISO8859_1,
		28592: charmap.ISO8859_2,
		28595: charmap.ISO8859_5,
		28597: charmap.ISO8859_7,
		28605: charmap.ISO8859_15,
		54936: simplifiedchinese.GB18030,
		65001: unicode.UTF8,
	}
}

// DefaultLanguageDrivers returns the dBASE language driver ids and their codepages.
func DefaultLanguageDrivers() LanguageDrivers {
	return LanguageDrivers{
		0x01: 437, 0x02: 850, 0x03: 1252, 0x04: 10000,
		0x08: 865, 0x09: 437, 0x0A: 850, 0x0B: 437,
		0x0D: 437, 0x0E: 850, 0x0F: 437, 0x10: 850,
		0x11: 437, 0x12: 850, 0x13: 932, 0x14: 850,
		0x15: 437, 0x16: 850, 0x17: 865, 0x18: 437,
		0x19: 437, 0x1A: 850, 0x1B: 437, 0x1C: 863,
		0x1D: 850, 0x1F: 852, 0x22: 852, 0x23: 852,
		0x24: 860, 0x25: 850, 0x26: 866, 0x37: 850,
		0x40: 852, 0x4D: 936, 0x4E: 949, 0x4F: 950,
		0x50: 874, 0x57: 1252, 0x58: 1252, 0x59: 1252,
		0x64: 852, 0x65: 866, 0x66: 865, 0x67: 861,
		0x6A: 737, 0x6B: 857, 0x6C: 863, 0x78: 950,
		0x79: 949, 0x7A: 936, 0x7B: 932, 0x7C: 874,
		0x86: 737, 0x87: 852, 0x88: 857, 0x96: 10007,
		0x97: 10029, 0x98: 10006, 0xC8: 1250, 0xC9: 1251,
		0xCA: 1254, 0xCB: 1253, 0xCC: 1257,
	}
}

var isoVariants = map[int]encoding.Encoding{
	1: charmap.ISO8859_1,
	2: charmap.ISO8859_2,
	3: charmap.ISO8859_3,
	4: charmap.ISO8859_4,
	5: charmap.ISO8859_5,
	6: charmap.ISO8859_6,
	7: charmap.ISO8859_7,
	8: charmap.ISO8859_8,
	9: charmap.ISO8859_9,
}

// TextDecoder converts raw .dbf bytes to UTF-8 strings.
type TextDecoder struct {
	Name string
	dec  *encoding.Decoder
}

func newTextDecoder(name string, enc encoding.Encoding) *TextDecoder {
	return &TextDecoder{Name: name, dec: enc.NewDecoder()}
}

// Decode returns b as a UTF-8 string.
func (d *TextDecoder) Decode(b []byte) (string, error) {
	out, err := d.dec.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s text: %w", d.Name, err)
	}
	return string(out), nil
}

// EncodingResolver picks the text encoding of a .dbf file from a .cpg hint or
// from the language driver byte in the .dbf header.
type EncodingResolver struct {
	CodePages       CodePages
	LanguageDrivers LanguageDrivers
}

// FromHint resolves the contents of a .cpg file. Hints that match none of the
// known patterns fall back to codepage 1252.
func (r *EncodingResolver) FromHint(hint string) (*TextDecoder, error) {
	if reUTF8.MatchString(hint) {
		return newTextDecoder("utf-8", unicode.UTF8), nil
	}
	if m := reANSI.FindStringSubmatch(hint); m != nil {
		cp, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, hint)
		}
		return r.codePage(cp)
	}
	if m := reISO.FindStringSubmatch(hint); m != nil {
		n, _ := strconv.Atoi(m[1])
		enc, ok := isoVariants[n]
		if !ok {
			return nil, fmt.Errorf("%w: ISO-8859-%d", ErrUnsupportedEncoding, n)
		}
		return newTextDecoder(fmt.Sprintf("iso-8859-%d", n), enc), nil
	}
	return r.codePage(defaultCodePage)
}

// FromLanguageDriver resolves the .dbf language driver id. Zero means the
// file declares no codepage and 1252 is assumed.
func (r *EncodingResolver) FromLanguageDriver(id byte) (*TextDecoder, error) {
	if id == 0 {
		return r.codePage(defaultCodePage)
	}
	cp, ok := r.LanguageDrivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: language driver 0x%02X", ErrUnknownCodepage, id)
	}
	return r.codePage(cp)
}

func (r *EncodingResolver) codePage(cp int) (*TextDecoder, error) {
	enc, ok := r.CodePages[cp]
	if !ok {
		return nil, fmt.Errorf("%w: cp%d", ErrUnsupportedEncoding, cp)
	}
	return newTextDecoder(fmt.Sprintf("cp%d", cp), enc), nil
}
