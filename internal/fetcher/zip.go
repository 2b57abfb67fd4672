package fetcher

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// maxEntrySize bounds a single extracted file. Boundary datasets are tens
// of megabytes; anything near this is not a shapefile bundle.
const maxEntrySize = 2 << 30

// ExtractZIP unpacks every file of the archive into destDir and returns
// their paths. Entries that would land outside destDir are rejected.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	var out []string
	for _, f := range r.File {
		dest := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(dest, root) {
			return out, eris.Errorf("zip: entry %q escapes destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return out, eris.Wrapf(err, "zip: mkdir %s", dest)
			}
			continue
		}
		if f.UncompressedSize64 > maxEntrySize {
			return out, eris.Errorf("zip: entry %q is too large (%d bytes)", f.Name, f.UncompressedSize64)
		}
		if err := extractFile(f, dest); err != nil {
			return out, err
		}
		out = append(out, dest)
	}
	return out, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "zip: mkdir %s", filepath.Dir(dest))
	}

	src, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", dest)
	}
	if _, err := io.Copy(dst, io.LimitReader(src, maxEntrySize)); err != nil {
		_ = dst.Close()
		return eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	if err := dst.Close(); err != nil {
		return eris.Wrapf(err, "zip: close %s", dest)
	}
	return nil
}

// FindByExt returns the shallowest file under dir with extension ext,
// compared case-insensitively. Ties break lexically.
func FindByExt(dir, ext string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ext) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "zip: walk %s", dir)
	}
	if len(matches) == 0 {
		return "", eris.Errorf("zip: no %s file in %s", ext, dir)
	}

	sort.Slice(matches, func(i, j int) bool {
		di := strings.Count(matches[i], string(os.PathSeparator))
		dj := strings.Count(matches[j], string(os.PathSeparator))
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	return matches[0], nil
}
