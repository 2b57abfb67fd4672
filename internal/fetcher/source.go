package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// IsRemote reports whether src is an http or https URL.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Localize returns a local path for src. Local paths pass through; remote
// sources are mirrored into dir under a stable name that keeps the URL's
// extension, so repeated runs revalidate the same file.
func Localize(ctx context.Context, f Fetcher, src, dir string) (string, error) {
	if !IsRemote(src) {
		return src, nil
	}
	if f == nil {
		return "", eris.Errorf("fetcher: no fetcher configured for %s", src)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "fetcher: create temp dir %s", dir)
	}

	m, err := f.Mirror(ctx, src, filepath.Join(dir, localName(src)))
	if err != nil {
		return "", err
	}

	zap.L().Info("fetcher: source mirrored",
		zap.String("path", m.Path),
		zap.Int64("bytes", m.Bytes),
		zap.Bool("unchanged", m.Unchanged),
	)
	return m.Path, nil
}

// localName prefixes the URL's base name with a short digest of the full URL.
func localName(src string) string {
	sum := sha256.Sum256([]byte(src))

	base := "download"
	if u, err := url.Parse(src); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && strings.TrimSpace(b) != "" {
			base = b
		}
	}
	return hex.EncodeToString(sum[:4]) + "-" + base
}
