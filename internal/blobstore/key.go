package blobstore

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const (
	nameSuffixLen   = 4
	unknownUserName = "Unknown"
)

// KeyParts are the inputs of an audio object key.
type KeyParts struct {
	Folder      string
	DisplayName string
	UserID      string
	PromptRef   string
	At          time.Time
	FileName    string
}

// BuildKey returns <folder>/<nameSuffix>_<userID>_<promptRef>_<unixMillis>_<fileName>.
// The name suffix is the last four characters of the display name with whitespace
// replaced by underscores; the file name is slugged with its extension kept.
func BuildKey(p KeyParts) string {
	folder := strings.Trim(strings.TrimSpace(p.Folder), "/")
	name := strings.Join(
		[]string{
			nameSuffix(p.DisplayName),
			p.UserID,
			slug.Make(p.PromptRef),
			strconv.FormatInt(p.At.UnixMilli(), 10),
			sanitizeFileName(p.FileName),
		},
		"_",
	)
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func nameSuffix(displayName string) string {
	normalized := strings.Join(strings.Fields(displayName), "_")
	if normalized == "" {
		return unknownUserName
	}
	runes := []rune(normalized)
	if len(runes) > nameSuffixLen {
		runes = runes[len(runes)-nameSuffixLen:]
	}
	return string(runes)
}

func sanitizeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	ext := strings.ToLower(path.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "audio"
	}
	if ext != "" {
		ext = "." + slug.Make(strings.TrimPrefix(ext, "."))
		if ext == "." {
			ext = ""
		}
	}
	return stem + ext
}
