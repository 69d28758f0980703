package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/credcheck/infrastructure/units"
	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/ports"
	"github.com/ahrav/credcheck/internal/testutils"
)

// stubExtractor returns a fixed corpus and records the paths it was given.
type stubExtractor struct {
	corpus domain.Corpus
	report domain.ExtractionReport
	err    error

	mu    sync.Mutex
	paths []string
}

func (s *stubExtractor) Extract(_ context.Context, path string) (domain.Corpus, domain.ExtractionReport, error) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	return s.corpus, s.report, s.err
}

func (s *stubExtractor) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// recordingCollector captures counters and latencies.
type recordingCollector struct {
	mu        sync.Mutex
	counters  []recordedMetric
	latencies []recordedMetric
}

type recordedMetric struct {
	name   string
	labels map[string]string
}

func (r *recordingCollector) RecordLatency(op string, _ time.Duration, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies = append(r.latencies, recordedMetric{op, labels})
}

func (r *recordingCollector) RecordCounter(metric string, _ float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, recordedMetric{metric, labels})
}

func (r *recordingCollector) RecordGauge(string, float64, map[string]string)     {}
func (r *recordingCollector) RecordHistogram(string, float64, map[string]string) {}

var _ ports.MetricsCollector = (*recordingCollector)(nil)

const webCertificate = "CERTIFICATE OF COMPLETION\n\nThis certifies completion of Web Development Fundamentals\n\nID: ABC-123-XYZ"

func extractorFor(segments ...string) *stubExtractor {
	return &stubExtractor{
		corpus: domain.NewCorpus(segments),
		report: domain.ExtractionReport{Attempted: 11, Produced: len(segments), Skipped: 0},
	}
}

func newTestCoordinator(t *testing.T, extractor ports.Extractor, llm ports.LLMClient, collector ports.MetricsCollector) *Coordinator {
	t.Helper()
	matcher, err := units.NewCredentialMatchUnit(units.DefaultCredentialMatchConfig())
	require.NoError(t, err)
	verifier, err := units.NewTitleVerificationUnit(llm, units.DefaultTitleVerificationConfig(), nil)
	require.NoError(t, err)
	c, err := NewCoordinator(extractor, matcher, verifier, nil, collector)
	require.NoError(t, err)
	return c
}

func verdictWithTitle(appropriate, relevant bool, confidence int, relationship, certTitle string) string {
	return fmt.Sprintf(
		`{"isAppropriate": %t, "inappropriateReason": "", "isRelevant": %t, "confidence": %d, "relationship": %q, "certificateTitle": %q, "reason": "compared topics"}`,
		appropriate, relevant, confidence, relationship, certTitle,
	)
}

func TestNewCoordinator_RequiresDependencies(t *testing.T) {
	matcher, err := units.NewCredentialMatchUnit(units.DefaultCredentialMatchConfig())
	require.NoError(t, err)
	verifier, err := units.NewTitleVerificationUnit(nil, units.DefaultTitleVerificationConfig(), nil)
	require.NoError(t, err)
	extractor := extractorFor("x")

	tests := []struct {
		name      string
		extractor ports.Extractor
		matcher   ports.CredentialMatcher
		verifier  ports.TitleVerifier
	}{
		{"nil extractor", nil, matcher, verifier},
		{"nil matcher", extractor, nil, verifier},
		{"nil verifier", extractor, matcher, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCoordinator(tt.extractor, tt.matcher, tt.verifier, nil, nil)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

func TestVerifyCertificateCredential_ValidatesArguments(t *testing.T) {
	extractor := extractorFor(webCertificate)
	c := newTestCoordinator(t, extractor, testutils.NewMockLLMClient("mock"), nil)

	tests := []struct {
		name                    string
		path, credential, title string
		wantErrors              int
	}{
		{"missing path", "", "ABC", "Go", 1},
		{"missing credential", "/tmp/c.png", "  ", "Go", 1},
		{"missing title", "/tmp/c.png", "ABC", "", 1},
		{"all missing", "", "", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.VerifyCertificateCredential(context.Background(), tt.path, tt.credential, tt.title)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEmptyValue)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Errors, tt.wantErrors)
		})
	}
	assert.Empty(t, extractor.Paths(), "extraction must not start for invalid requests")
}

func TestVerifyCertificateCredential_Success(t *testing.T) {
	llm := testutils.NewMockLLMClient("mock")
	llm.SetFallback(verdictWithTitle(true, true, 92, "subset", "Web Development Fundamentals"))
	extractor := extractorFor(webCertificate)
	collector := &recordingCollector{}
	c := newTestCoordinator(t, extractor, llm, collector)

	result, err := c.VerifyCertificateCredential(context.Background(), "/uploads/cert.png", "ABC-123-XYZ", "Advanced Web Development")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.True(t, result.CredentialValid)
	assert.True(t, result.TitleValid)
	assert.True(t, result.IsAppropriate)
	assert.Empty(t, result.InappropriateReason)
	assert.Equal(t, 92, result.Confidence)
	assert.Equal(t, domain.RelationshipSubset, result.Relationship)
	assert.Equal(t, "Web Development Fundamentals", result.CertificateTitle)
	assert.Equal(t, "compared topics", result.AIReason)
	assert.Equal(t, webCertificate, result.ExtractedText)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, result.Extraction.Produced)
	assert.Contains(t, result.Message, "Certificate verified")
	assert.Equal(t, []string{"/uploads/cert.png"}, extractor.Paths())

	require.Len(t, llm.Prompts(), 1)
	assert.Contains(t, llm.Prompts()[0], "Advanced Web Development")
	assert.Contains(t, llm.Prompts()[0], "ABC-123-XYZ")

	require.Len(t, collector.counters, 1)
	assert.Equal(t, "verifications_total", collector.counters[0].name)
	assert.Equal(t, OutcomeVerified, collector.counters[0].labels["outcome"])
	require.Len(t, collector.latencies, 1)
	assert.Equal(t, "verification", collector.latencies[0].name)
}

// TestVerifyCertificateCredential_Scenarios covers the documented outcome
// combinations end to end through the real matcher and verifier.
func TestVerifyCertificateCredential_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		corpus       string
		credential   string
		title        string
		llmAnswer    string
		noLLM        bool
		wantSuccess  bool
		wantCred     bool
		wantTitle    bool
		wantApprop   bool
		wantContains []string
	}{
		{
			name:         "direct credential match",
			corpus:       webCertificate,
			credential:   "ABC-123-XYZ",
			title:        "Web Development",
			llmAnswer:    verdictWithTitle(true, true, 95, "same", "Web Development Fundamentals"),
			wantSuccess:  true,
			wantCred:     true,
			wantTitle:    true,
			wantApprop:   true,
			wantContains: []string{"Certificate verified"},
		},
		{
			name:         "credential confused by recognition",
			corpus:       "CERTIFICATE\n\nID: ABC-l23-XYZ",
			credential:   "ABC-123-XYZ",
			title:        "Web Development",
			llmAnswer:    verdictWithTitle(true, true, 80, "related", "Web Development Fundamentals"),
			wantSuccess:  true,
			wantCred:     true,
			wantTitle:    true,
			wantApprop:   true,
			wantContains: []string{"Certificate verified"},
		},
		{
			name:        "title unrelated",
			corpus:      "CERTIFICATE OF COMPLETION\n\nSoftware Engineering\n\nID: SE-2024-001",
			credential:  "SE-2024-001",
			title:       "Professional Cooking",
			llmAnswer:   verdictWithTitle(true, false, 97, "unrelated", "Software Engineering"),
			wantSuccess: false,
			wantCred:    true,
			wantTitle:   false,
			wantApprop:  true,
			wantContains: []string{
				`"Professional Cooking"`,
				`"Software Engineering"`,
				"relationship: unrelated",
				"confidence: 97%",
				"credential ID was found",
			},
		},
		{
			name:         "inference not configured",
			corpus:       webCertificate,
			credential:   "ABC-123-XYZ",
			title:        "Web Development",
			noLLM:        true,
			wantSuccess:  false,
			wantCred:     true,
			wantTitle:    false,
			wantApprop:   false,
			wantContains: []string{units.ReasonNotConfigured},
		},
		{
			name:         "credential missing, title fine",
			corpus:       webCertificate,
			credential:   "QQQ-999-ZZZ",
			title:        "Web Development",
			llmAnswer:    verdictWithTitle(true, true, 90, "same", "Web Development Fundamentals"),
			wantSuccess:  false,
			wantCred:     false,
			wantTitle:    true,
			wantApprop:   true,
			wantContains: []string{`Credential ID "QQQ-999-ZZZ" was not found`, "matches the certificate"},
		},
		{
			name:         "both failed",
			corpus:       webCertificate,
			credential:   "QQQ-999-ZZZ",
			title:        "Professional Cooking",
			llmAnswer:    verdictWithTitle(true, false, 90, "unrelated", "Web Development Fundamentals"),
			wantSuccess:  false,
			wantCred:     false,
			wantTitle:    false,
			wantApprop:   true,
			wantContains: []string{`Credential ID "QQQ-999-ZZZ" was not found`, `"Professional Cooking" does not match`},
		},
		{
			name:         "inappropriate title wins over matches",
			corpus:       webCertificate,
			credential:   "ABC-123-XYZ",
			title:        "Web Development",
			llmAnswer:    testutils.VerdictJSON(false, true, 90, "same"),
			wantSuccess:  false,
			wantCred:     true,
			wantTitle:    false,
			wantApprop:   false,
			wantContains: []string{"did not pass the content check", "offensive language"},
		},
		{
			name:         "malformed answer is a relevance failure",
			corpus:       webCertificate,
			credential:   "ABC-123-XYZ",
			title:        "Web Development",
			llmAnswer:    "I think it is fine.",
			wantSuccess:  false,
			wantCred:     true,
			wantTitle:    false,
			wantApprop:   true,
			wantContains: []string{"does not match the certificate", "relationship: unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var llm ports.LLMClient
			if !tt.noLLM {
				mock := testutils.NewMockLLMClient("mock")
				mock.SetFallback(tt.llmAnswer)
				llm = mock
			}
			c := newTestCoordinator(t, extractorFor(tt.corpus), llm, nil)

			result, err := c.VerifyCertificateCredential(context.Background(), "/uploads/c.png", tt.credential, tt.title)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantCred, result.CredentialValid)
			assert.Equal(t, tt.wantTitle, result.TitleValid)
			assert.Equal(t, tt.wantApprop, result.IsAppropriate)
			assert.Equal(t, tt.corpus, result.ExtractedText)
			for _, want := range tt.wantContains {
				assert.Contains(t, result.Message, want)
			}
		})
	}
}

func TestVerifyCertificateCredential_NotConfiguredSkipsNetwork(t *testing.T) {
	c := newTestCoordinator(t, extractorFor(webCertificate), nil, nil)

	result, err := c.VerifyCertificateCredential(context.Background(), "/uploads/c.png", "ABC-123-XYZ", "Web Development")
	require.NoError(t, err)
	assert.False(t, result.IsAppropriate)
	assert.Equal(t, 0, result.Confidence)
	assert.Equal(t, units.ReasonNotConfigured, result.AIReason)
	assert.Empty(t, result.Relationship)
}

func TestVerifyCertificateCredential_ExtractionFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"extraction error", domain.NewExtractionError("decode", "/uploads/c.png", errors.New("unknown format"))},
		{"plain error", errors.New("disk on fire")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := testutils.NewMockLLMClient("mock")
			extractor := &stubExtractor{err: tt.err, report: domain.ExtractionReport{Attempted: 0}}
			collector := &recordingCollector{}
			c := newTestCoordinator(t, extractor, llm, collector)

			result, err := c.VerifyCertificateCredential(context.Background(), "/uploads/c.png", "ABC", "Go")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrExtractionFailed)
			assert.ErrorIs(t, err, tt.err)

			require.NotNil(t, result)
			assert.False(t, result.Success)
			assert.False(t, result.CredentialValid)
			assert.False(t, result.TitleValid)
			assert.Equal(t, ExtractionFailedMessage, result.Message)
			assert.True(t, strings.HasPrefix(result.Message, "Failed to verify certificate"))
			assert.Equal(t, err.Error(), result.Error)

			assert.Empty(t, llm.Prompts(), "no verification after failed extraction")
			require.Len(t, collector.counters, 1)
			assert.Equal(t, OutcomeExtractionFailed, collector.counters[0].labels["outcome"])
		})
	}
}

func TestVerifyCertificateCredential_PreviewTruncated(t *testing.T) {
	long := strings.Repeat("é", PreviewLength+100)
	c := newTestCoordinator(t, extractorFor(long), testutils.NewMockLLMClient("mock"), nil)

	result, err := c.VerifyCertificateCredential(context.Background(), "/uploads/c.png", "ABC", "Go")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", PreviewLength), result.ExtractedText)
}

func TestVerifyCertificateCredential_EmptyCorpus(t *testing.T) {
	c := newTestCoordinator(t, extractorFor(), testutils.NewMockLLMClient("mock"), nil)

	result, err := c.VerifyCertificateCredential(context.Background(), "/uploads/c.png", "ABC-123", "Go")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.CredentialValid)
	assert.Empty(t, result.ExtractedText)
}

func TestVerifyCertificateCredential_Logging(t *testing.T) {
	logger, logs := testutils.NewObservedLogger()
	matcher, err := units.NewCredentialMatchUnit(units.DefaultCredentialMatchConfig())
	require.NoError(t, err)
	verifier, err := units.NewTitleVerificationUnit(testutils.NewMockLLMClient("mock"), units.DefaultTitleVerificationConfig(), nil)
	require.NoError(t, err)
	c, err := NewCoordinator(extractorFor(webCertificate), matcher, verifier, logger, nil)
	require.NoError(t, err)

	_, err = c.VerifyCertificateCredential(context.Background(), "/uploads/c.png", "ABC-123-XYZ", "Web Development")
	require.NoError(t, err)

	decided := logs.FilterMessage("certificate verification decided").All()
	require.Len(t, decided, 1)
	assert.Equal(t, OutcomeVerified, decided[0].ContextMap()["outcome"])

	stages := logs.FilterMessage("verification stage changed").All()
	var reached []string
	for _, e := range stages {
		reached = append(reached, e.ContextMap()["to"].(string))
	}
	assert.Equal(t, []string{"extracting", "extracted", "matching_verifying", "decided"}, reached)
}

func TestVerifyCertificateCredential_Concurrent(t *testing.T) {
	c := newTestCoordinator(t, extractorFor(webCertificate), testutils.NewMockLLMClient("mock"), &recordingCollector{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := c.VerifyCertificateCredential(context.Background(), "/uploads/c.png", "ABC-123-XYZ", "Web Development")
			assert.NoError(t, err)
			assert.True(t, result.Success)
		}()
	}
	wg.Wait()
}
