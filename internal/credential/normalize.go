package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Change tags which normalization steps altered the raw secret. The tag list
// is safe to log: it never carries the secret itself.
type Change string

const (
	ChangeUnicodeNormalized Change = "unicode_normalized"
	ChangeInvisibleRemoved  Change = "invisible_removed"
	ChangeLineBreaksRemoved Change = "line_breaks_removed"
	ChangeTrimmed           Change = "trimmed"
	ChangeUnquoted          Change = "unquoted"
)

// Normalized is the result of running a raw credential through the pipeline.
type Normalized struct {
	Value   string
	Changes []Change
}

// Normalize canonicalizes a raw secret token copied out of a vendor dashboard:
// invisible/control character removal, NFKC compatibility normalization,
// explicit tab/CR/LF removal, whitespace trim, and stripping of surrounding
// quote layers. Internal whitespace and internal quotes are preserved; they
// may be significant to the credential.
//
// Invisibles go before NFKC: NFKC maps NBSP to an ordinary space, which would
// launder an invisible character into kept internal whitespace.
//
// Trim and unquote run to a fixpoint so that a quoted, padded token such as
// `" abc "` settles in one pass. That keeps Normalize idempotent:
// Normalize(Normalize(x).Value) reports no changes.
func Normalize(raw string) Normalized {
	out := Normalized{Value: raw}

	if v := strings.Map(dropInvisible, out.Value); v != out.Value {
		out.Value = v
		out.Changes = append(out.Changes, ChangeInvisibleRemoved)
	}

	if v := norm.NFKC.String(out.Value); v != out.Value {
		out.Value = v
		out.Changes = append(out.Changes, ChangeUnicodeNormalized)
	}

	if v := strings.Map(dropLineBreaks, out.Value); v != out.Value {
		out.Value = v
		out.Changes = append(out.Changes, ChangeLineBreaksRemoved)
	}

	trimmed := false
	unquoted := false
	for {
		v := strings.TrimSpace(out.Value)
		if v != out.Value {
			out.Value = v
			trimmed = true
			continue
		}
		v = stripQuoteLayer(out.Value)
		if v != out.Value {
			out.Value = v
			unquoted = true
			continue
		}
		break
	}
	if trimmed {
		out.Changes = append(out.Changes, ChangeTrimmed)
	}
	if unquoted {
		out.Changes = append(out.Changes, ChangeUnquoted)
	}

	return out
}

// Fingerprint derives a short one-way digest of a normalized secret, used to
// correlate log lines without exposing the secret. Never used to authenticate.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}

// dropInvisible removes control codes and zero-width/invisible separators.
// Tab, CR and LF are left for the dedicated line-break step so the change
// tags stay meaningful in audit logs.
func dropInvisible(r rune) rune {
	switch r {
	case '\t', '\r', '\n':
		return r
	case '\u00A0', // no-break space
		'\u200B', '\u200C', '\u200D', // zero-width space and joiners
		'\u2060', // word joiner
		'\uFEFF', // byte-order mark
		'\u2028', '\u2029': // line and paragraph separators
		return -1
	}
	if unicode.IsControl(r) {
		return -1
	}
	return r
}

func dropLineBreaks(r rune) rune {
	switch r {
	case '\t', '\r', '\n':
		return -1
	}
	return r
}

func isQuote(r byte) bool {
	return r == '"' || r == '\''
}

// stripQuoteLayer removes one layer of surrounding quotes. The leading and
// trailing quote need not match; pasted tokens show up with mixed quoting.
func stripQuoteLayer(s string) string {
	if len(s) >= 2 && isQuote(s[0]) && isQuote(s[len(s)-1]) {
		return s[1 : len(s)-1]
	}
	return s
}
