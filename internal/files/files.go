// Package files implements the per-user upload namespace: every file lives
// under <base>/<owner id>/ and may only be read back by its owner.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lookbook/server/internal/apperr"

	"github.com/google/uuid"
)

const (
	uploadPrefix = "img_"
	resultPrefix = "result_"
)

type Namespace struct {
	base string
}

// NewNamespace roots the namespace at dir, creating it if needed. Only
// upload-side operations create directories; Locate never does.
func NewNamespace(dir string) (*Namespace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Namespace{base: abs}, nil
}

func (n *Namespace) Base() string { return n.base }

// ResolvePath maps (owner, filename) to an on-disk path. Any directory
// components in filename are discarded before joining, so "../../etc/passwd"
// reduces to "passwd" inside the owner's directory.
func (n *Namespace) ResolvePath(ownerID uint, filename string) string {
	return filepath.Join(n.base, strconv.FormatUint(uint64(ownerID), 10), filepath.Base(filename))
}

// Authorize permits access only when the requester's canonical decimal id
// equals the owner segment byte-for-byte. A segment like "007" is denied
// even though it parses to the requester's id.
func (n *Namespace) Authorize(requesterID uint, ownerSegment string) error {
	if strconv.FormatUint(uint64(requesterID), 10) != ownerSegment {
		return apperr.Forbidden("You do not have permission to access this file")
	}
	return nil
}

// Locate validates that the resolved path stays inside the base directory
// and that the file exists. It performs no writes.
func (n *Namespace) Locate(ownerID uint, filename string) (string, error) {
	path := n.ResolvePath(ownerID, filename)
	if !strings.HasPrefix(path, n.base+string(filepath.Separator)) {
		return "", apperr.Forbidden("Invalid file path")
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", apperr.NotFound("File not found")
	}
	// Defense in depth: a symlink placed in the owner's directory must not
	// lead reads outside the base.
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", apperr.NotFound("File not found")
	}
	resolvedBase, err := filepath.EvalSymlinks(n.base)
	if err != nil {
		return "", apperr.Forbidden("Invalid file path")
	}
	if resolved != resolvedBase && !strings.HasPrefix(resolved, resolvedBase+string(filepath.Separator)) {
		return "", apperr.Forbidden("Invalid file path")
	}
	return path, nil
}

// SaveUpload stores an uploaded image under the owner's directory as
// img_<unique><ext> and returns the stored name.
func (n *Namespace) SaveUpload(ownerID uint, src io.Reader, originalName string) (string, error) {
	dir := filepath.Join(n.base, strconv.FormatUint(uint64(ownerID), 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create user dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	name := uploadPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	return name, nil
}

// Remove deletes a stored file from the owner's directory.
func (n *Namespace) Remove(ownerID uint, filename string) error {
	return os.Remove(n.ResolvePath(ownerID, filename))
}

// Duplicate copies a stored file to a sibling name in the same owner
// directory and returns the new name.
func (n *Namespace) Duplicate(ownerID uint, srcName, dstName string) (string, error) {
	src, err := os.Open(n.ResolvePath(ownerID, srcName))
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(n.ResolvePath(ownerID, dstName))
	if err != nil {
		return "", fmt.Errorf("create copy: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("copy file: %w", err)
	}
	return dstName, nil
}

// ResultName derives the result artifact name from an upload name by
// swapping the img_ prefix for result_.
func ResultName(uploadName string) string {
	if strings.HasPrefix(uploadName, uploadPrefix) {
		return resultPrefix + strings.TrimPrefix(uploadName, uploadPrefix)
	}
	return resultPrefix + uploadName
}

// SecureURL is the client-facing path for a stored file.
func SecureURL(ownerID uint, filename string) string {
	return fmt.Sprintf("/v1/files/%d/%s", ownerID, filepath.Base(filename))
}
