package services

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/media"
)

// MediaService stores builder image uploads and serves their paths.
type MediaService struct {
	processor *media.Processor
}

func NewMediaService(processor *media.Processor) *MediaService {
	return &MediaService{processor: processor}
}

// Upload decodes and stores one base64 image payload, returning the stored
// path and generated thumbnails.
func (s *MediaService) Upload(filename, payload string) (*media.UploadResult, error) {
	if payload == "" {
		return nil, fmt.Errorf("image payload cannot be empty")
	}
	id := "img-" + ulid.Make().String()
	return s.processor.ProcessBase64(id, filename, payload)
}

// Delete removes a stored image and its variants.
func (s *MediaService) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("image id cannot be empty")
	}
	return s.processor.Delete(id)
}
