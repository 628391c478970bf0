package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidReceipt rejects uploads with an empty or path-traversing name or
// an extension outside the allowed set.
var ErrInvalidReceipt = errors.New("invalid receipt file")

var allowedReceiptExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

// ReceiptStore saves uploaded receipt files on local disk. Files are named
// "<email>_<filename>", so re-uploading the same filename for the same user
// overwrites the previous receipt.
type ReceiptStore struct {
	dir string
}

func NewReceiptStore(dir string) (*ReceiptStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}
	return &ReceiptStore{dir: dir}, nil
}

// Save writes the upload and returns the stored filename (not the full
// path), which is what gets persisted on the expense row.
func (s *ReceiptStore) Save(email, filename string, r io.Reader) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidReceipt
	}
	if !allowedReceiptExts[strings.ToLower(filepath.Ext(name))] {
		return "", ErrInvalidReceipt
	}

	stored := email + "_" + name
	f, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return "", fmt.Errorf("create receipt file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write receipt file: %w", err)
	}
	return stored, nil
}

// Path resolves a stored filename for serving. Only the user's own receipts
// resolve; anything else (other prefixes, traversal attempts) is rejected.
func (s *ReceiptStore) Path(email, stored string) (string, error) {
	name := filepath.Base(stored)
	if name != stored || !strings.HasPrefix(name, email+"_") {
		return "", ErrInvalidReceipt
	}
	full := filepath.Join(s.dir, name)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("stat receipt: %w", err)
	}
	return full, nil
}

// Remove deletes a stored receipt file. Missing files are not an error so
// purge stays idempotent.
func (s *ReceiptStore) Remove(email, stored string) error {
	full, err := s.Path(email, stored)
	if errors.Is(err, ErrInvalidReceipt) {
		return err
	}
	if err != nil {
		return nil
	}
	return os.Remove(full)
}
