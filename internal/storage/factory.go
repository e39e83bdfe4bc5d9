package storage

import (
	"fmt"
	"os"

	"invoicepdf/internal/adapters/storage/localfs"
)

func NewProvider() (Provider, error) {
	provider := os.Getenv("STORAGE_PROVIDER")
	if provider == "" {
		provider = "localfs"
	}

	switch provider {
	case "localfs":
		root := os.Getenv("PDF_OUTPUT_DIR")
		if root == "" {
			root = "/data/pdfs"
		}
		return localfs.New(root), nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", provider)
	}
}
