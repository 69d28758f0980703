package application

import (
	"time"

	"github.com/ahrav/credcheck/infrastructure/extraction"
	"github.com/ahrav/credcheck/infrastructure/httpapi"
	"github.com/ahrav/credcheck/infrastructure/inference"
	"github.com/ahrav/credcheck/infrastructure/ocr"
	"github.com/ahrav/credcheck/infrastructure/units"
	"github.com/ahrav/credcheck/internal/logging"
)

// AppConfig is the complete configuration of a credcheck process and
// serves as the primary configuration entry point for the system.
// Use LoadConfig to build one from a YAML file, .env files and the process
// environment; DefaultAppConfig gives the values used for anything the
// sources leave unset.
type AppConfig struct {
	// Logging configures the structured logger shared by every component.
	Logging logging.Config `yaml:"logging"`
	// Inference selects the generative model used by the title verifier.
	// An empty API key is valid and disables semantic verification.
	Inference InferenceConfig `yaml:"inference"`
	// OCR selects and configures the text recognition engine.
	OCR OCRConfig `yaml:"ocr"`
	// Extraction controls the multi-strategy extraction battery.
	Extraction extraction.Config `yaml:"extraction"`
	// Matcher tunes fuzzy credential matching.
	Matcher units.CredentialMatchConfig `yaml:"matcher"`
	// Verifier tunes the title verification prompt and call.
	Verifier units.TitleVerificationConfig `yaml:"verifier"`
	// Server configures the HTTP endpoint started by "serve".
	Server httpapi.Config `yaml:"server"`
}

// InferenceConfig identifies the model provider and how calls to it are
// protected against slow or failing upstreams.
type InferenceConfig struct {
	// Provider is the registered inference provider name.
	Provider string `yaml:"provider" env:"CREDCHECK_INFERENCE_PROVIDER" validate:"required,oneof=google openai anthropic"`
	// APIKey authenticates with the provider. It is never read from the
	// YAML file; when unset the provider's conventional variable is used.
	APIKey string `yaml:"-" env:"CREDCHECK_INFERENCE_API_KEY"`
	// Model overrides the provider's default model.
	Model string `yaml:"model" env:"CREDCHECK_INFERENCE_MODEL" validate:"omitempty,max=200"`
	// BaseURL overrides the provider endpoint, for proxies and tests.
	BaseURL string `yaml:"base_url" env:"CREDCHECK_INFERENCE_BASE_URL" validate:"omitempty,url"`
	// Resilience configures the middleware chain around every call.
	Resilience inference.ResilienceConfig `yaml:"resilience"`
}

// Configured reports whether an API key is available.
func (c InferenceConfig) Configured() bool { return c.APIKey != "" }

// providerKeyEnv maps providers to the variable their SDKs conventionally
// read the key from.
var providerKeyEnv = map[string]string{
	"google":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// OCRConfig selects the recognition engine and bounds every call to it.
type OCRConfig struct {
	// Engine is the registered recognizer name (tesseract or vision).
	Engine string `yaml:"engine" env:"CREDCHECK_OCR_ENGINE" validate:"required,alphanum"`
	// Timeout bounds a single recognition call. A call that exceeds it
	// contributes empty text.
	Timeout time.Duration `yaml:"timeout" env:"CREDCHECK_OCR_TIMEOUT" validate:"required,min=1ms"`
	// Tesseract configures the local tesseract engine.
	Tesseract ocr.TesseractConfig `yaml:"tesseract"`
	// Vision configures the Google Cloud Vision engine.
	Vision ocr.VisionConfig `yaml:"vision"`
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Logging: logging.Config{Level: "info"},
		Inference: InferenceConfig{
			Provider:   "google",
			Resilience: inference.DefaultResilienceConfig(),
		},
		OCR: OCRConfig{
			Engine:    EngineTesseract,
			Timeout:   ocr.DefaultRecognitionTimeout,
			Tesseract: ocr.TesseractConfig{Binary: ocr.DefaultTesseractBinary, Language: "eng"},
		},
		Extraction: extraction.DefaultConfig(),
		Matcher:    units.DefaultCredentialMatchConfig(),
		Verifier:   units.DefaultTitleVerificationConfig(),
		Server:     httpapi.DefaultConfig(),
	}
}
