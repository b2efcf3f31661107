package fileutils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/iancoleman/strcase"
)

// RenameSuffix is appended to an imported file name while the name is already
// taken in the library root.
const RenameSuffix = "-Rename"

var (
	smartDoubleQuotes = regexp.MustCompile(`[“”]`)
	smartSingleQuotes = regexp.MustCompile(`[‘’]`)
	invalidChars      = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multipleSpaces    = regexp.MustCompile(`\s+`)
)

// SeriesDirName returns the PascalCase directory name used for a series.
func SeriesDirName(series string) string {
	name := strcase.ToCamel(sanitizeForFilename(series))
	if name == "" {
		return "Unknown"
	}
	return name
}

// OrganizedFileName returns "<SeriesPascal>_T<volume:000>.cbz".
func OrganizedFileName(series string, volume int) string {
	return fmt.Sprintf("%s_T%03d.cbz", SeriesDirName(series), volume)
}

// OrganizedComicPath computes the library-relative path of a comic from its
// metadata. Without a series the current path is kept. With a series the file
// goes into the series directory, and is renamed as well when the volume is
// known.
func OrganizedComicPath(series string, volume int, currentRelPath string) string {
	if strings.TrimSpace(series) == "" {
		return currentRelPath
	}

	name := filepath.Base(currentRelPath)
	if volume > 0 {
		name = OrganizedFileName(series, volume)
	}

	return filepath.Join(SeriesDirName(series), name)
}

// TitleFromFilename returns the file name without its directory and extension.
func TitleFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sanitizeForFilename removes or replaces characters that are not safe for filenames.
func sanitizeForFilename(name string) string {
	name = smartDoubleQuotes.ReplaceAllString(name, `"`)
	name = smartSingleQuotes.ReplaceAllString(name, `'`)
	name = invalidChars.ReplaceAllString(name, "")
	name = multipleSpaces.ReplaceAllString(name, " ")

	// Windows doesn't like trailing dots
	name = strings.Trim(name, " .")

	if len(name) > 200 {
		name = name[:200]
		name = strings.Trim(name, " .")
	}

	return name
}
