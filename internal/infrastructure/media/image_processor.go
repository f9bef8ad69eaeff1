// Package media handles decoding, storing, and thumbnailing of images
// uploaded from the builder (base64 payloads from the editor canvas).
package media

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// thumbnailWidths are the webp variants generated for each raster upload.
var thumbnailWidths = []int{1200, 600, 300}

const thumbnailQuality = 85

// Processor writes uploaded images to the media directory and generates
// webp thumbnails for raster formats. SVG files are stored verbatim.
type Processor struct {
	mediaPath string
	logger    *logging.ChanneledLogger
}

func NewProcessor(mediaPath string, logger *logging.ChanneledLogger) *Processor {
	return &Processor{mediaPath: mediaPath, logger: logger}
}

// UploadResult describes a stored image and its generated variants.
type UploadResult struct {
	Path       string   `json:"path"`
	Thumbnails []string `json:"thumbnails,omitempty"`
}

// ProcessBase64 decodes a data-URI (or bare base64) payload and stores it
// under the media directory as <id>.<ext>. Raster images additionally get
// webp thumbnails named <id>_<width>px.webp.
func (p *Processor) ProcessBase64(id, filename, payload string) (*UploadResult, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty image payload")
	}

	ext := extensionFor(filename, payload)
	data := payload
	if idx := strings.Index(data, ","); idx != -1 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}

	if err := os.MkdirAll(p.mediaPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	if ext == ".svg" {
		return p.storeSVG(id, data)
	}
	return p.storeRaster(id, ext, data)
}

func (p *Processor) storeSVG(id, data string) (*UploadResult, error) {
	content := data
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		content = string(decoded)
	}
	if !strings.Contains(content, "<svg") {
		return nil, fmt.Errorf("invalid SVG content")
	}

	name := id + ".svg"
	if err := os.WriteFile(filepath.Join(p.mediaPath, name), []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write SVG: %w", err)
	}
	p.logger.Media().Debug("Stored SVG image", "file", name)
	return &UploadResult{Path: name}, nil
}

func (p *Processor) storeRaster(id, ext, data string) (*UploadResult, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}

	name := id + ext
	fullPath := filepath.Join(p.mediaPath, name)
	if err := os.WriteFile(fullPath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	result := &UploadResult{Path: name}

	thumbs, err := p.generateThumbnails(id, fullPath)
	if err != nil {
		// The original remains usable without variants.
		p.logger.Media().Warn("Thumbnail generation failed", "file", name, "error", err)
	} else {
		result.Thumbnails = thumbs
	}

	p.logger.Media().Debug("Stored image", "file", name, "thumbnails", len(result.Thumbnails))
	return result, nil
}

func (p *Processor) generateThumbnails(id, srcPath string) ([]string, error) {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var names []string
	for _, width := range thumbnailWidths {
		if img.Bounds().Dx() < width {
			continue
		}
		resized := imaging.Resize(img, width, 0, imaging.Lanczos)
		name := fmt.Sprintf("%s_%dpx.webp", id, width)
		thumbPath := filepath.Join(p.mediaPath, name)
		if err := webp.Save(thumbPath, resized, &webp.Options{Quality: thumbnailQuality}); err != nil {
			return names, fmt.Errorf("failed to save %s: %w", name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// Delete removes an image and all of its generated variants.
func (p *Processor) Delete(id string) error {
	entries, err := os.ReadDir(p.mediaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if base == id || strings.HasPrefix(base, id+"_") {
			if err := os.Remove(filepath.Join(p.mediaPath, name)); err != nil {
				return err
			}
			p.logger.Media().Debug("Deleted media file", "file", name)
		}
	}
	return nil
}

// extensionFor picks a file extension from the upload filename, falling back
// to MIME sniffing of the data-URI prefix.
func extensionFor(filename, payload string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		switch ext {
		case ".svg", ".png", ".jpg", ".jpeg", ".ico", ".webp", ".gif":
			return ext
		}
	}
	switch {
	case strings.HasPrefix(payload, "data:image/svg"):
		return ".svg"
	case strings.HasPrefix(payload, "data:image/png"):
		return ".png"
	case strings.HasPrefix(payload, "data:image/webp"):
		return ".webp"
	case strings.HasPrefix(payload, "data:image/gif"):
		return ".gif"
	case strings.HasPrefix(payload, "data:image/x-icon"), strings.HasPrefix(payload, "data:image/vnd.microsoft.icon"):
		return ".ico"
	default:
		return ".jpg"
	}
}
