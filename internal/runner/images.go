package runner

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// ImageStore persists one frame image.
type ImageStore interface {
	Save(path string, img image.Image) error
}

// PNGStore writes lossless PNG files.
type PNGStore struct {
	Encoder png.Encoder
}

// NewPNGStore favours encode speed; burn-in runs write two images per save.
func NewPNGStore() *PNGStore {
	return &PNGStore{Encoder: png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (s *PNGStore) Save(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("save %s: no image data", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := s.Encoder.Encode(file, img); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode png: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close image: %w", err)
	}
	return nil
}
