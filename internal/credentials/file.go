package credentials

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileKeyClientID     = "client_id"
	fileKeyClientSecret = "client_secret"
)

// FileStore provides atomic file-based credential storage with secure permissions.
// The file holds one key=value pair per line:
//
//	client_id=...
//	client_secret=...
//
// Writes use temp file + rename for crash safety.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Read returns the stored credentials. Returns a *ConfigurationError if the file
// doesn't exist or lacks a value, and a plain error on insecure permissions.
func (f *FileStore) Read(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	info, err := os.Stat(f.filePath)
	if os.IsNotExist(err) {
		return Credentials{}, &ConfigurationError{Source: []string{f.filePath}}
	}
	if err != nil {
		return Credentials{}, err
	}
	if info.Mode().Perm() != 0600 {
		return Credentials{}, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	file, err := os.Open(f.filePath)
	if err != nil {
		return Credentials{}, err
	}
	defer func() { _ = file.Close() }()

	var creds Credentials
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case fileKeyClientID:
			creds.ClientID = strings.TrimSpace(value)
		case fileKeyClientSecret:
			creds.ClientSecret = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("reading %s: %w", f.filePath, err)
	}

	if !creds.Complete() {
		return Credentials{}, &ConfigurationError{Source: []string{f.filePath}}
	}
	return creds, nil
}

// Write atomically saves the credentials using temp file + rename.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) Write(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !creds.Complete() {
		return fmt.Errorf("client id and client secret are both required")
	}

	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	content := fileKeyClientID + "=" + creds.ClientID + "\n" +
		fileKeyClientSecret + "=" + creds.ClientSecret + "\n"
	if _, err := tempFile.WriteString(content); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, f.filePath); err != nil {
		return err
	}

	return os.Chmod(f.filePath, 0600)
}
