package units

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(t *testing.T) *CredentialMatchUnit {
	t.Helper()
	m, err := NewCredentialMatchUnit(DefaultCredentialMatchConfig())
	require.NoError(t, err)
	return m
}

func TestNewCredentialMatchUnit_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config CredentialMatchConfig
	}{
		{"zero threshold", CredentialMatchConfig{Threshold: 0, MaxClaimLength: 10}},
		{"threshold above one", CredentialMatchConfig{Threshold: 1.5, MaxClaimLength: 10}},
		{"zero claim length", CredentialMatchConfig{Threshold: 0.85, MaxClaimLength: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCredentialMatchUnit(tt.config)
			assert.Error(t, err)
		})
	}
}

// TestCredentialMatch_Scenarios tests the matching steps against realistic
// OCR output.
func TestCredentialMatch_Scenarios(t *testing.T) {
	m := newTestMatcher(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		corpus string
		claim  string
		want   MatchMethod
	}{
		{
			name:   "exact id in corpus",
			corpus: "CERTIFICATE OF COMPLETION\n\nThis certifies that Jane Doe\n\nID: ABC-123-XYZ\n\nissued 2024",
			claim:  "ABC-123-XYZ",
			want:   MatchDirect,
		},
		{
			name:   "ocr read 1 as l",
			corpus: "CERTIFICATE OF COMPLETION\n\nID: ABC-l23-XYZ",
			claim:  "ABC-123-XYZ",
			want:   MatchConfusion,
		},
		{
			name:   "claim typed with letter o",
			corpus: "Credential CRED-010",
			claim:  "CRED-01O",
			want:   MatchConfusion,
		},
		{
			name:   "whitespace and punctuation ignored",
			corpus: "Credential ID : abc 123 / xyz",
			claim:  "abc123xyz",
			want:   MatchDirect,
		},
		{
			name:   "one character dropped by ocr",
			corpus: "ID UC-8F2A9C1E-77D4 verified",
			claim:  "UC-8F2A9C1E-77D45",
			want:   MatchFuzzy,
		},
		{
			name:   "absent credential",
			corpus: "CERTIFICATE OF COMPLETION Web Development Fundamentals",
			claim:  "ZZZ-999-QQQ",
			want:   MatchNone,
		},
		{
			name:   "claim with no usable characters",
			corpus: "anything",
			claim:  "  !! ",
			want:   MatchNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.MatchContext(ctx, tt.corpus, tt.claim))
			assert.Equal(t, tt.want != MatchNone, m.Match(tt.corpus, tt.claim))
		})
	}
}

// TestCredentialMatch_ClaimLongerThanCorpus tests that the sliding window
// step performs no comparisons when the claim cannot fit.
func TestCredentialMatch_ClaimLongerThanCorpus(t *testing.T) {
	m := newTestMatcher(t)

	assert.NotPanics(t, func() {
		assert.False(t, m.Match("AB", "ABCDEFGH"))
		assert.False(t, m.Match("", "ABC"))
	})
	assert.False(t, m.windowMatch("ab", "abcdef"))
}

// TestCredentialMatch_ClaimTooLong tests that the length cap only gates the
// sliding window step.
func TestCredentialMatch_ClaimTooLong(t *testing.T) {
	m, err := NewCredentialMatchUnit(CredentialMatchConfig{Threshold: 0.85, MaxClaimLength: 4})
	require.NoError(t, err)

	assert.Equal(t, MatchDirect, m.MatchContext(context.Background(), "ABCDEFGH", "ABCDEF"))
	assert.Equal(t, MatchConfusion, m.MatchContext(context.Background(), "ABCDEFGH1", "ABCDEFGHI"))
	assert.Equal(t, MatchNone, m.MatchContext(context.Background(), "ABCDEFGHIX", "ABCDEFGHIJ"),
		"one substitution in ten reaches the threshold but the claim exceeds the cap")

	uncapped := newTestMatcher(t)
	assert.Equal(t, MatchFuzzy, uncapped.MatchContext(context.Background(), "ABCDEFGHIX", "ABCDEFGHIJ"))
}

func TestCredentialMatch_LongClaimVerbatim(t *testing.T) {
	m := newTestMatcher(t)
	claim := "CERT-" + strings.Repeat("A1B2", 32)
	corpus := "Certificate of Completion ID: " + claim + " issued"

	require.Greater(t, len(Normalize(claim)), DefaultCredentialMatchConfig().MaxClaimLength)
	assert.True(t, m.Match(corpus, claim))
}

// TestCredentialMatch_DirectSubstringProperty tests that any normalized
// substring of the corpus is always found.
func TestCredentialMatch_DirectSubstringProperty(t *testing.T) {
	m := newTestMatcher(t)
	rng := rand.New(rand.NewSource(7))
	const alphabet = "ABCDEFGHJKMNPQRTUVWXYZ2345679-"

	for i := 0; i < 200; i++ {
		corpus := randomString(rng, alphabet, 20+rng.Intn(60))
		start := rng.Intn(len(corpus) - 5)
		end := start + 1 + rng.Intn(len(corpus)-start-1)
		claim := corpus[start:end]
		if Normalize(claim) == "" {
			continue
		}
		assert.True(t, m.Match("prefix "+corpus+" suffix", claim), "corpus=%q claim=%q", corpus, claim)
	}
}

// TestCredentialMatch_ConfusionProperty tests that a single confusion
// substitution of a true id embedded in the corpus still matches the id.
func TestCredentialMatch_ConfusionProperty(t *testing.T) {
	m := newTestMatcher(t)

	for _, id := range []string{"CRED-010", "SN-5518-0011", "B8-LI10"} {
		for _, variant := range ConfusionVariants(Normalize(id)) {
			corpus := "Certificate of Achievement " + strings.ToUpper(variant) + " awarded"
			assert.True(t, m.Match(corpus, id), "id=%q variant=%q", id, variant)
		}
	}
}

func TestConfusionVariants(t *testing.T) {
	got := ConfusionVariants("cred-01o")
	assert.Contains(t, got, "cred-o1o")
	assert.Contains(t, got, "cred-010")
	assert.Contains(t, got, "cred-0io")
	assert.Contains(t, got, "cred-0lo")
	assert.NotContains(t, got, "cred-01o", "the claim itself is not a variant")
	assert.NotContains(t, got, "cred-oio", "substitutions are never combined")

	assert.Empty(t, ConfusionVariants("xyz"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ABC-123-XYZ", "abc-123-xyz"},
		{" ID: abc 123\n", "idabc123"},
		{"Straße", "strasse"},
		{"a_b.c/d", "abcd"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

// TestSimilarity tests that similarity is symmetric, bounded and reflexive.
func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("abc", ""))
	assert.Equal(t, 1.0, Similarity("café", "café"))
	assert.InDelta(t, 0.75, Similarity("café", "cafe"), 1e-9)
	assert.InDelta(t, 0.8, Similarity("abcde", "abxde"), 1e-9)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a := randomString(rng, "abc01-", rng.Intn(12))
		b := randomString(rng, "abc01-", rng.Intn(12))

		ab, ba := Similarity(a, b), Similarity(b, a)
		assert.Equal(t, ab, ba, "a=%q b=%q", a, b)
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 1.0)
		assert.Equal(t, 1.0, Similarity(a, a))
	}
}

func randomString(rng *rand.Rand, alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}
