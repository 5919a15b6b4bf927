package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader stores evidence files on disk; used when R2 is not configured.
type LocalUploader struct {
	Dir       string // e.g. "uploads"
	URLPrefix string // e.g. "/uploads"
}

// EnsureDir creates the uploads directory if it doesn't exist
func (u *LocalUploader) EnsureDir() error {
	return os.MkdirAll(u.Dir, os.ModePerm)
}

// Upload saves the file under Dir/key and returns its served path.
func (u *LocalUploader) Upload(_ context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	if fileHeader.Size > MaxEvidenceSize {
		return "", fmt.Errorf("file exceeds %d bytes", MaxEvidenceSize)
	}
	clean := filepath.Clean("/" + key)
	destPath := filepath.Join(u.Dir, clean)

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, MaxEvidenceSize)); err != nil {
		return "", err
	}
	return strings.TrimRight(u.URLPrefix, "/") + filepath.ToSlash(clean), nil
}
