// fetch.go implements the binary-cache download path: HTTP fetch of an
// xz-compressed NAR, checksum and size verification against the lock pin,
// and unpacking into the store through a temporary directory.
package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
	"zombiezen.com/go/nix/nar"

	"github.com/mmr-tortoise/kiln/internal/lockfile"
	"github.com/mmr-tortoise/kiln/internal/model"
)

// userAgent identifies kiln to the binary cache.
const userAgent = "kiln/1.0"

// fetch downloads, verifies, and unpacks one pinned tool into target.
func (s *Store) fetch(ctx context.Context, tool model.Tool, pin lockfile.Pin, target string) error {
	archiveURL, err := s.resolveURL(pin.URL)
	if err != nil {
		return model.WrapCLIError(model.ExitVerifyFailed,
			fmt.Sprintf("invalid cache URL for tool %s", tool.Ref()), err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	start := time.Now()
	s.logger.Debug("fetching tool from binary cache",
		zap.String("tool", tool.Ref()),
		zap.String("url", archiveURL))

	// Download into a temp file next to the store root so the final
	// rename stays on one filesystem.
	archive, err := os.CreateTemp(s.dir, ".fetch-*.nar.xz")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		archive.Close()
		_ = os.Remove(archive.Name())
	}()

	size, digest, err := s.download(ctx, archiveURL, archive)
	if err != nil {
		return model.WrapCLIError(model.ExitVerifyFailed,
			fmt.Sprintf("failed to download tool %s", tool.Ref()), err)
	}

	// Verify before touching the store. A pin mismatch means either cache
	// corruption or a tampered archive; both are fatal.
	if pin.Size != 0 && size != pin.Size {
		return model.NewCLIError(model.ExitVerifyFailed,
			fmt.Sprintf("tool %s: archive size %d does not match locked size %d", tool.Ref(), size, pin.Size))
	}
	if err := checkDigest(digest, pin.SHA256); err != nil {
		return model.WrapCLIError(model.ExitVerifyFailed,
			fmt.Sprintf("tool %s failed checksum verification", tool.Ref()), err)
	}

	// Unpack into a temp directory, then rename into place. Rename is
	// atomic, so a crashed fetch never exposes a partial store path.
	tmpDir, err := os.MkdirTemp(s.dir, ".unpack-*")
	if err != nil {
		return fmt.Errorf("creating unpack directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding archive: %w", err)
	}
	if err := unpackNAR(archive, tmpDir); err != nil {
		return model.WrapCLIError(model.ExitVerifyFailed,
			fmt.Sprintf("failed to unpack tool %s", tool.Ref()), err)
	}

	if err := os.Rename(tmpDir, target); err != nil {
		// A concurrent kiln process may have won the race; content
		// addressing means its result is identical to ours.
		if s.presentDir(target) {
			return nil
		}
		return fmt.Errorf("moving %s into store: %w", tool.Ref(), err)
	}

	s.logger.Debug("tool materialized",
		zap.String("tool", tool.Ref()),
		zap.String("path", target),
		zap.Int64("archiveBytes", size),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// download streams the archive into w, returning the byte count and sha256
// digest of what was written.
func (s *Store) download(ctx context.Context, archiveURL string, w io.Writer) (int64, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, archiveURL)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(w, hasher), resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return size, hasher.Sum(nil), nil
}

// resolveURL resolves a lock pin URL against the cache base URL. Absolute
// pin URLs are used as-is; relative ones require a configured cache.
func (s *Store) resolveURL(pinURL string) (string, error) {
	u, err := url.Parse(pinURL)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return pinURL, nil
	}
	if s.cacheURL == "" {
		return "", fmt.Errorf("lock pin URL %q is relative but no cache URL is configured", pinURL)
	}
	return strings.TrimSuffix(s.cacheURL, "/") + "/" + strings.TrimPrefix(pinURL, "/"), nil
}

// presentDir reports whether path exists and is a directory.
func (s *Store) presentDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// unpackNAR decompresses an xz stream and extracts the contained NAR
// archive into destDir. Regular files, directories, and symlinks are
// materialized; the executable bit is preserved.
func unpackNAR(r io.Reader, destDir string) error {
	xzReader, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating xz reader: %w", err)
	}

	narReader := nar.NewReader(xzReader)
	for {
		hdr, err := narReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading NAR entry: %w", err)
		}

		targetPath := filepath.Join(destDir, filepath.FromSlash(hdr.Path))

		switch {
		case hdr.Mode.IsDir():
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", targetPath, err)
			}

		case hdr.Mode&os.ModeSymlink != 0:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			if err := os.Symlink(hdr.LinkTarget, targetPath); err != nil {
				return fmt.Errorf("creating symlink %s: %w", targetPath, err)
			}

		case hdr.Mode.IsRegular():
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			perm := os.FileMode(0644)
			if hdr.Mode&0111 != 0 {
				perm = 0755
			}
			out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
			if err != nil {
				return fmt.Errorf("creating file %s: %w", targetPath, err)
			}
			written, copyErr := io.Copy(out, narReader)
			closeErr := out.Close()
			if copyErr != nil {
				return fmt.Errorf("writing file %s: %w", targetPath, copyErr)
			}
			if closeErr != nil {
				return fmt.Errorf("closing file %s: %w", targetPath, closeErr)
			}
			if written != hdr.Size {
				return fmt.Errorf("file %s: wrote %d bytes, NAR header says %d", targetPath, written, hdr.Size)
			}

		default:
			// NAR has no other node types; anything else is corruption.
			return fmt.Errorf("unsupported NAR entry type for %s", hdr.Path)
		}
	}
	return nil
}
