package credential

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_DashboardPasteScenario(t *testing.T) {
	raw := "  \"abc\u00a0123\"\t\n"

	got := Normalize(raw)
	assert.Equal(t, "abc123", got.Value)
	assert.Equal(t, []Change{
		ChangeInvisibleRemoved,
		ChangeLineBreaksRemoved,
		ChangeTrimmed,
		ChangeUnquoted,
	}, got.Changes)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"  \"abc\u00a0123\"\t\n",
		"'\" tok-42 \"'",
		"“not-a-quote”", // curly quotes are not strippable quote chars
		"plain",
		"  spaced out  ",
		"\ufeffbom-prefixed",
		"ﬁnance", // NFKC expands the fi ligature
	}
	for _, raw := range inputs {
		first := Normalize(raw)
		second := Normalize(first.Value)
		assert.Equal(t, first.Value, second.Value, "input %q", raw)
		assert.Empty(t, second.Changes, "input %q", raw)
	}
}

func TestNormalize_PreservesInternalWhitespaceAndQuotes(t *testing.T) {
	got := Normalize(`"user name:'secret'"`)
	assert.Equal(t, "user name:'secret'", got.Value)

	// NBSP is invisible and removed, the ordinary internal space stays.
	got = Normalize("a\u00a0b c")
	assert.Equal(t, "ab c", got.Value)
	assert.Equal(t, []Change{ChangeInvisibleRemoved}, got.Changes)

	// NBSP must not degrade into a kept plain space via compatibility mapping
	got = Normalize("a\u00a0b")
	assert.Equal(t, "ab", got.Value)
	assert.Equal(t, []Change{ChangeInvisibleRemoved}, got.Changes)
}

func TestNormalize_MixedQuoteLayers(t *testing.T) {
	got := Normalize(`'"abc"'`)
	assert.Equal(t, "abc", got.Value)
	assert.Equal(t, []Change{ChangeUnquoted}, got.Changes)

	// a lone quote on one side is internal, not a layer
	got = Normalize(`"abc`)
	assert.Equal(t, `"abc`, got.Value)
	assert.Empty(t, got.Changes)
}

func TestNormalize_UnicodeCompatibility(t *testing.T) {
	got := Normalize("oﬃce") // ffi ligature
	assert.Equal(t, "office", got.Value)
	assert.Equal(t, []Change{ChangeUnicodeNormalized}, got.Changes)
}

func TestNormalize_QuotedPaddedTokenSettlesInOnePass(t *testing.T) {
	got := Normalize(`" abc "`)
	assert.Equal(t, "abc", got.Value)

	again := Normalize(got.Value)
	assert.Empty(t, again.Changes)
}

func TestNormalize_EmptyAfterPipeline(t *testing.T) {
	got := Normalize(" \t\"\" \n")
	assert.Equal(t, "", got.Value)
}

func TestFingerprint_DeterministicShortHex(t *testing.T) {
	a := Fingerprint("abc123")
	assert.Len(t, a, 12)
	assert.Equal(t, a, Fingerprint("abc123"))
	assert.NotEqual(t, a, Fingerprint("abc124"))
	assert.Regexp(t, "^[0-9a-f]{12}$", a)
}

func TestFingerprint_RandomInputsDoNotCollide(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	seen := make(map[string]string, 2000)
	for i := 0; i < 2000; i++ {
		buf := make([]byte, 20)
		for j := range buf {
			buf[j] = alphabet[rng.Intn(len(alphabet))]
		}
		token := string(buf)
		fp := Fingerprint(token)
		if prev, ok := seen[fp]; ok && prev != token {
			t.Fatalf("fingerprint collision: %q and %q -> %s", prev, token, fp)
		}
		seen[fp] = token
	}
}
