package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yashlad/fserver/internal/server"
)

// readFiles loads every path. An empty contentType is sniffed from the
// file's bytes.
func readFiles(paths []string, contentType string) ([]server.FileMessage, error) {
	files := make([]server.FileMessage, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		declared := contentType
		if declared == "" {
			declared = mimetype.Detect(data).String()
		}
		files = append(files, server.FileMessage{
			Filename:    filepath.Base(path),
			ContentType: declared,
			Data:        data,
		})
	}
	return files, nil
}
