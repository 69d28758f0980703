package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/ports"
)

// Cloud Vision feature types.
const (
	featureText         = "TEXT_DETECTION"
	featureDocumentText = "DOCUMENT_TEXT_DETECTION"
)

// VisionConfig configures the Google Cloud Vision engine.
type VisionConfig struct {
	// APIKey authenticates with an API key. When empty, application
	// default credentials are used.
	APIKey string `yaml:"-" env:"CREDCHECK_VISION_API_KEY"`
	// CredentialsFile is a service account JSON file.
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	// LanguageHints are passed in the image context.
	LanguageHints []string `yaml:"language_hints"`
}

var _ ports.Recognizer = (*Vision)(nil)

// Vision recognizes text with Google Cloud Vision. Sparse segmentation maps
// to TEXT_DETECTION and every other mode to DOCUMENT_TEXT_DETECTION. The
// service has no character whitelist; the Adapter filters its output.
type Vision struct {
	service *vision.Service
	hints   []string
}

// NewVision creates a Vision engine. Extra client options are appended
// after the ones derived from cfg.
func NewVision(ctx context.Context, cfg VisionConfig, opts ...option.ClientOption) (*Vision, error) {
	var clientOpts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := vision.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision service: %w", err)
	}
	return &Vision{service: service, hints: cfg.LanguageHints}, nil
}

// Name implements ports.Recognizer.
func (v *Vision) Name() string { return "vision" }

// Recognize implements ports.Recognizer. allowed is ignored.
func (v *Vision) Recognize(ctx context.Context, image []byte, mode domain.SegmentationMode, _ string) (string, error) {
	if len(image) == 0 {
		return "", ports.NewRecognitionError(v.Name(), int(mode), errors.New("empty image"))
	}

	request := &vision.AnnotateImageRequest{
		Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []*vision.Feature{{Type: featureFor(mode)}},
	}
	if len(v.hints) > 0 {
		request.ImageContext = &vision.ImageContext{LanguageHints: v.hints}
	}

	resp, err := v.service.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{request},
	}).Context(ctx).Do()
	if err != nil {
		return "", ports.NewRecognitionError(v.Name(), int(mode), err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return "", ports.NewRecognitionError(v.Name(), int(mode),
			fmt.Errorf("annotate status %d: %s", r.Error.Code, r.Error.Message))
	}
	if r.FullTextAnnotation != nil && r.FullTextAnnotation.Text != "" {
		return r.FullTextAnnotation.Text, nil
	}
	if len(r.TextAnnotations) > 0 {
		return r.TextAnnotations[0].Description, nil
	}
	return "", nil
}

func featureFor(mode domain.SegmentationMode) string {
	if mode == domain.SegSparse {
		return featureText
	}
	return featureDocumentText
}
