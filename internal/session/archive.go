package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ArchivePrefix starts the name of every package archive.
const ArchivePrefix = "article_package_"

// Package writes a zip archive into the session directory holding the article
// files under articles/, the image files under images/ and rootFiles at the
// top level. Files missing on disk are skipped. It returns the archive path.
func (s *Store) Package(ctx context.Context, sess *Session, articles, images []string, rootFiles ...string) (archivePath string, err error) {
	name := ArchivePrefix + s.now().UTC().Format(idLayout) + ".zip"
	archivePath = sess.Path(name)

	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()

	zw := zip.NewWriter(f)
	added, skipped := 0, 0

	groups := []struct {
		prefix string
		files  []string
	}{
		{prefix: ArticlesDir, files: articles},
		{prefix: ImagesDir, files: images},
		{prefix: "", files: rootFiles},
	}
	for _, g := range groups {
		for _, src := range g.files {
			if src == "" {
				continue
			}
			arcname := path.Join(g.prefix, filepath.Base(src))
			ok, err := addFile(zw, src, arcname)
			if err != nil {
				_ = zw.Close()
				return "", err
			}
			if !ok {
				skipped++
				s.logger.WarnContext(ctx, "skipping missing file in archive",
					"session_id", sess.ID,
					"file", src)
				continue
			}
			added++
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	s.logger.InfoContext(ctx, "created archive",
		"session_id", sess.ID,
		"archive", archivePath,
		"files", added,
		"skipped", skipped)
	return archivePath, nil
}

// addFile copies src into the archive as arcname. It reports false when src
// does not exist.
func addFile(zw *zip.Writer, src, arcname string) (bool, error) {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return false, nil
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, fmt.Errorf("archive header for %s: %w", src, err)
	}
	header.Name = arcname
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return false, fmt.Errorf("add %s to archive: %w", arcname, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return false, fmt.Errorf("copy %s into archive: %w", arcname, err)
	}
	return true, nil
}
