// Package dataset resolves a named remote dataset to a local cache and
// relocates its files into a working directory.
package dataset

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/JonMunkholm/fraudload/internal/core"
)

// Fetcher downloads datasets into a cache directory and moves them to
// where the pipeline reads them.
type Fetcher struct {
	client   *Client
	cacheDir string
	logger   *slog.Logger
}

// NewFetcher returns a Fetcher caching under cacheDir. An empty cacheDir
// uses <user cache dir>/fraudload.
func NewFetcher(client *Client, cacheDir string, logger *slog.Logger) (*Fetcher, error) {
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("no cache directory: %w", err)
		}
		cacheDir = filepath.Join(base, "fraudload")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, cacheDir: cacheDir, logger: logger}, nil
}

// parseHandle splits "owner/name".
func parseHandle(handle string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(handle, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") ||
		owner == "." || owner == ".." || name == "." || name == ".." {
		return "", "", fmt.Errorf("invalid dataset handle %q (want owner/name)", handle)
	}
	return owner, name, nil
}

// Resolve makes sure the dataset is in the cache and returns its directory.
// A cache directory that already holds files is reused without contacting
// the hub.
func (f *Fetcher) Resolve(ctx context.Context, handle string) (string, error) {
	const op = "resolve dataset"

	owner, name, err := parseHandle(handle)
	if err != nil {
		return "", core.E(core.KindDownloadFailure, op, err)
	}

	dir := filepath.Join(f.cacheDir, "datasets", owner, name)
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		f.logger.Info("dataset cache hit", "handle", handle, "path", dir)
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", core.E(core.KindDownloadFailure, op, err)
	}

	archive, err := os.CreateTemp(f.cacheDir, "download-*.zip")
	if err != nil {
		return "", core.E(core.KindDownloadFailure, op, err)
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	f.logger.Info("downloading dataset", "handle", handle)
	n, err := f.client.Download(ctx, owner, name, archive)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", core.E(core.KindDownloadFailure, op, err)
	}
	f.logger.Info("dataset downloaded", "handle", handle, "bytes", n)

	files, err := extractZip(archive, n, dir)
	if err != nil {
		// Leave no half-extracted cache behind to be mistaken for a hit.
		os.RemoveAll(dir)
		return "", core.E(core.KindDownloadFailure, op, err)
	}
	f.logger.Info("dataset extracted", "path", dir, "files", files)

	return dir, nil
}

// Fetch resolves handle and moves every cached entry into targetDir,
// creating it if needed. Existing files of the same name are replaced.
// Returns the paths of the moved entries.
func (f *Fetcher) Fetch(ctx context.Context, handle, targetDir string) ([]string, error) {
	dir, err := f.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	moved, err := Relocate(dir, targetDir)
	if err != nil {
		return nil, core.E(core.KindDownloadFailure, "relocate dataset", err)
	}
	f.logger.Info("dataset saved", "target", targetDir, "entries", len(moved))
	return moved, nil
}

// extractZip unpacks the archive in r into dir. Entries that would land
// outside dir are rejected. Returns the number of files written.
func extractZip(r io.ReaderAt, size int64, dir string) (int, error) {
	zr, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		return 0, fmt.Errorf("archive entry escapes the target directory: %w", err)
	}
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	files := 0
	for _, zf := range zr.File {
		dest := filepath.Join(root, filepath.FromSlash(zf.Name))
		if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("archive entry %q escapes the target directory", zf.Name)
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return files, err
			}
			continue
		}

		if err := extractFile(zf, dest); err != nil {
			return files, fmt.Errorf("extract %s: %w", zf.Name, err)
		}
		files++
	}
	return files, nil
}

func extractFile(zf *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Relocate moves every entry of srcDir into dstDir, creating dstDir if
// needed. Entries are renamed when possible and copied then removed when
// the rename crosses filesystems.
func Relocate(srcDir, dstDir string) ([]string, error) {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, err
	}

	moved := make([]string, 0, len(entries))
	for _, e := range entries {
		src := filepath.Join(srcDir, e.Name())
		dst := filepath.Join(dstDir, e.Name())

		if err := move(src, dst); err != nil {
			return moved, fmt.Errorf("move %s: %w", e.Name(), err)
		}
		moved = append(moved, dst)
	}
	return moved, nil
}

func move(src, dst string) error {
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copyTree(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// copyTree copies a file or directory tree.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
