package validation

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/config"
)

// Well-known archive entry names, expected at the archive root.
const (
	ManifestFilename  = "manifest.json"
	IconFilename      = "icon.png"
	ReadmeFilename    = "README.md"
	ChangelogFilename = "CHANGELOG.md"
)

// Archive is a structurally validated package zip with its well-known files
// extracted. Remaining entries are exposed through Files for file tree
// construction.
type Archive struct {
	Manifest  []byte
	Icon      []byte
	Readme    []byte
	Changelog []byte // nil when CHANGELOG.md is absent

	// Every regular file entry, including the well-known ones, in archive
	// order.
	Files []*zip.File
}

// OpenArchive reads the zip structure from r and enforces the structural
// rules: valid zip, safe entry paths, no duplicate entries, entry count and
// aggregate uncompressed size caps, and presence of the required files.
func OpenArchive(r io.ReaderAt, size int64, limits config.LimitConfig) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, apierrors.Validation("Invalid zip file format")
	}

	// The first local file header must sit at offset zero. Archives with
	// prepended data open fine via the central directory but are rejected.
	if len(zr.File) > 0 {
		var sig [4]byte
		if _, err := r.ReadAt(sig[:], 0); err != nil || string(sig[:]) != "PK\x03\x04" {
			return nil, apierrors.Validation("Invalid zip file format")
		}
	}

	if len(zr.File) > limits.MaxFilesPerZip {
		return nil, apierrors.Validation(fmt.Sprintf("Archive contains more than %d files", limits.MaxFilesPerZip))
	}

	archive := &Archive{}
	seen := map[string]bool{}
	var totalSize int64

	for _, f := range zr.File {
		if unsafePath(f.Name) {
			return nil, apierrors.Validation(fmt.Sprintf("Unsafe file path in archive: %s", f.Name))
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if seen[f.Name] {
			return nil, apierrors.Validation(fmt.Sprintf("Duplicate file in archive: %s", f.Name))
		}
		seen[f.Name] = true

		totalSize += int64(f.UncompressedSize64)
		if totalSize > limits.MaxPackageSize {
			return nil, apierrors.Validation(fmt.Sprintf("Package archive exceeds the maximum uncompressed size of %d bytes", limits.MaxPackageSize))
		}

		archive.Files = append(archive.Files, f)
	}

	if archive.Manifest, err = readEntry(zr, ManifestFilename); err != nil {
		return nil, err
	}
	if archive.Icon, err = readEntry(zr, IconFilename); err != nil {
		return nil, err
	}
	if archive.Readme, err = readEntry(zr, ReadmeFilename); err != nil {
		return nil, err
	}

	changelog, err := readOptionalEntry(zr, ChangelogFilename)
	if err != nil {
		return nil, err
	}
	archive.Changelog = changelog

	if err := validateMarkdown(ReadmeFilename, archive.Readme, limits.ReadmeMaxSize); err != nil {
		return nil, err
	}
	if archive.Changelog != nil {
		if err := validateMarkdown(ChangelogFilename, archive.Changelog, limits.ReadmeMaxSize); err != nil {
			return nil, err
		}
	}

	return archive, nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	data, err := readOptionalEntry(zr, name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apierrors.Validation(fmt.Sprintf("Package is missing %s", name))
	}
	return data, nil
}

func readOptionalEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apierrors.Validation("Corrupted zip file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apierrors.Validation("Corrupted zip file")
	}
	return data, nil
}

func validateMarkdown(name string, data []byte, maxSize int64) error {
	if int64(len(data)) > maxSize {
		return apierrors.Validation(fmt.Sprintf("%s exceeds the maximum size of %d bytes", name, maxSize))
	}
	if !utf8.Valid(data) {
		return apierrors.Validation(fmt.Sprintf("%s is not UTF-8 encoded", name))
	}
	return nil
}

// unsafePath rejects traversal and absolute entry names.
func unsafePath(name string) bool {
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return true
	}
	clean := path.Clean(name)
	return clean == ".." || strings.HasPrefix(clean, "../")
}
