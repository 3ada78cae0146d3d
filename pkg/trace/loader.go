package trace

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/logging"
)

// cacheSuffix names the sibling extraction cache of an archive.
const cacheSuffix = ".extracted"

// Load resolves a trace input path into a readable trace directory.
// Directories pass through untouched; archives are extracted into a
// sibling cache directory reused across invocations while fresh.
func Load(path string, logger *logging.Logger) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", errors.New(errors.ErrCodeNotFound, "trace path does not exist").
			WithContext("path", path).
			WithRemediation("check the path or run without one to pick from recent traces")
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidPath, "cannot stat trace path").
			WithContext("path", path)
	}

	if info.IsDir() {
		return path, nil
	}

	return extractToCache(path, info, logger)
}

// extractToCache reuses <archive>.extracted when it is newer than the
// archive; anything older is deleted and re-extracted. The cache is
// best-effort and unlocked: last extraction wins.
func extractToCache(archivePath string, archiveInfo os.FileInfo, logger *logging.Logger) (string, error) {
	cacheDir := archivePath + cacheSuffix

	if cacheInfo, err := os.Stat(cacheDir); err == nil && cacheInfo.IsDir() {
		if cacheInfo.ModTime().After(archiveInfo.ModTime()) {
			logDebug(logger, logging.CategoryLoader, "cache_hit",
				fmt.Sprintf("reusing extraction cache %s", cacheDir),
				map[string]any{"cache": cacheDir})
			return cacheDir, nil
		}
	}

	if err := os.RemoveAll(cacheDir); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidPath, "cannot clear stale extraction cache").
			WithContext("cache", cacheDir)
	}

	if err := extractZip(archivePath, cacheDir); err != nil {
		// Leave no partial cache behind: a half-extracted directory with a
		// fresh mtime would be reused as if complete.
		os.RemoveAll(cacheDir)
		return "", err
	}

	logDebug(logger, logging.CategoryLoader, "extracted",
		fmt.Sprintf("extracted %s", filepath.Base(archivePath)),
		map[string]any{"archive": archivePath, "cache": cacheDir})
	return cacheDir, nil
}

func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidArchive, "not a readable trace archive").
			WithContext("path", archivePath).
			WithRemediation("expected a zip archive or an extracted trace directory")
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidPath, "cannot create extraction cache").
			WithContext("cache", destDir)
	}

	root := filepath.Clean(destDir)
	for _, file := range reader.File {
		if err := extractEntry(file, root); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(file *zip.File, root string) error {
	target := filepath.Join(root, file.Name)

	// Reject entries that escape the extraction root (zip slip).
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return errors.New(errors.ErrCodeInvalidArchive, "archive entry escapes extraction root").
			WithContext("entry", file.Name)
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0755); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidArchive, "cannot create archive directory").
				WithContext("entry", file.Name)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidArchive, "cannot create archive directory").
			WithContext("entry", file.Name)
	}

	src, err := file.Open()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidArchive, "cannot read archive entry").
			WithContext("entry", file.Name)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidArchive, "cannot write archive entry").
			WithContext("entry", file.Name)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidArchive, "cannot extract archive entry").
			WithContext("entry", file.Name)
	}
	return nil
}

func logDebug(logger *logging.Logger, category logging.Category, eventType, message string, details map[string]any) {
	if logger == nil {
		return
	}
	_ = logger.Debug(category, eventType, message, details)
}
