package validation

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/config"
)

func testLimits() config.LimitConfig {
	return config.LimitConfig{
		MaxPackageSize: 10 * 1024 * 1024,
		IconMaxSize:    6 * 1024 * 1024,
		ReadmeMaxSize:  32 * 1024,
		MaxFilesPerZip: 100,
	}
}

// buildZip writes the given name -> content entries into an in-memory zip.
func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// testPNG encodes a width x height PNG.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func baseEntries(t *testing.T) map[string][]byte {
	return map[string][]byte{
		ManifestFilename: []byte(`{"name":"TestMod","version_number":"1.0.0"}`),
		IconFilename:     testPNG(t, 256, 256),
		ReadmeFilename:   []byte("# TestMod"),
	}
}

func TestOpenArchive_Valid(t *testing.T) {
	entries := baseEntries(t)
	entries["plugins/TestMod.dll"] = []byte("binary")
	data := buildZip(t, entries)

	archive, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
	require.NoError(t, err)
	assert.NotEmpty(t, archive.Manifest)
	assert.NotEmpty(t, archive.Icon)
	assert.Equal(t, []byte("# TestMod"), archive.Readme)
	assert.Nil(t, archive.Changelog)
	assert.Len(t, archive.Files, 4)
}

func TestOpenArchive_WithChangelog(t *testing.T) {
	entries := baseEntries(t)
	entries[ChangelogFilename] = []byte("## 1.0.0")
	data := buildZip(t, entries)

	archive, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
	require.NoError(t, err)
	assert.Equal(t, []byte("## 1.0.0"), archive.Changelog)
}

func TestOpenArchive_NotAZip(t *testing.T) {
	data := []byte("this is not a zip archive")
	_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields[apierrors.NonFieldErrors], "Invalid zip file format")
}

func TestOpenArchive_PrependedData(t *testing.T) {
	// The central directory still resolves, but the first entry no longer
	// starts at offset zero.
	data := append([]byte("junk before the archive"), buildZip(t, baseEntries(t))...)
	_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields[apierrors.NonFieldErrors], "Invalid zip file format")
}

func TestOpenArchive_CorruptLocalHeader(t *testing.T) {
	// Deterministic entry order so manifest.json stays intact at offset zero
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{ManifestFilename, IconFilename, ReadmeFilename} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(baseEntries(t)[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	// Break the icon entry's local header signature; the central directory
	// still lists the entry, so this must not read as a missing file.
	data := buf.Bytes()
	idx := bytes.Index(data, []byte(IconFilename))
	require.GreaterOrEqual(t, idx, 30)
	data[idx-30+2] ^= 0xFF

	_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields[apierrors.NonFieldErrors], "Corrupted zip file")
	assert.NotContains(t, v.Fields[apierrors.NonFieldErrors], "Package is missing icon.png")
}

func TestOpenArchive_MissingRequiredFiles(t *testing.T) {
	for _, missing := range []string{ManifestFilename, IconFilename, ReadmeFilename} {
		t.Run(missing, func(t *testing.T) {
			entries := baseEntries(t)
			delete(entries, missing)
			data := buildZip(t, entries)

			_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
			v, ok := apierrors.AsValidation(err)
			require.True(t, ok)
			assert.Contains(t, v.Fields[apierrors.NonFieldErrors], "Package is missing "+missing)
		})
	}
}

func TestOpenArchive_UnsafePaths(t *testing.T) {
	for _, name := range []string{"../evil.dll", "/abs/path.dll", `plugins\win.dll`, "a/../../evil.dll"} {
		t.Run(name, func(t *testing.T) {
			entries := baseEntries(t)
			entries[name] = []byte("x")
			data := buildZip(t, entries)

			_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
			_, ok := apierrors.AsValidation(err)
			require.True(t, ok, "expected validation error for %s, got %v", name, err)
		})
	}
}

func TestOpenArchive_TooManyFiles(t *testing.T) {
	limits := testLimits()
	limits.MaxFilesPerZip = 3

	entries := baseEntries(t)
	entries["extra.txt"] = []byte("x")
	data := buildZip(t, entries)

	_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), limits)
	_, ok := apierrors.AsValidation(err)
	require.True(t, ok)
}

func TestOpenArchive_UncompressedSizeCap(t *testing.T) {
	limits := testLimits()
	limits.MaxPackageSize = 64

	entries := baseEntries(t)
	data := buildZip(t, entries)

	_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), limits)
	_, ok := apierrors.AsValidation(err)
	require.True(t, ok)
}

func TestOpenArchive_ReadmeTooLarge(t *testing.T) {
	limits := testLimits()
	limits.ReadmeMaxSize = 4

	entries := baseEntries(t)
	entries[ReadmeFilename] = []byte("# TestMod readme")
	data := buildZip(t, entries)

	_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), limits)
	_, ok := apierrors.AsValidation(err)
	require.True(t, ok)
}

func TestOpenArchive_ReadmeNotUTF8(t *testing.T) {
	entries := baseEntries(t)
	entries[ReadmeFilename] = []byte{0xff, 0xfe, 0xfd}
	data := buildZip(t, entries)

	_, err := OpenArchive(bytes.NewReader(data), int64(len(data)), testLimits())
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields[apierrors.NonFieldErrors][0], "UTF-8")
}

func TestValidateIcon(t *testing.T) {
	assert.NoError(t, ValidateIcon(testPNG(t, 256, 256), 6*1024*1024))

	err := ValidateIcon(testPNG(t, 257, 256), 6*1024*1024)
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields["icon"][0], "256x256")

	err = ValidateIcon([]byte("not a png"), 6*1024*1024)
	v, ok = apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields["icon"][0], "not a valid PNG")

	err = ValidateIcon(testPNG(t, 256, 256), 10)
	v, ok = apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields["icon"][0], "maximum size")
}
