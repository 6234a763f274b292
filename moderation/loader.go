package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"path"
	"sodeclick-chat/errors"
	"sort"
	"strings"
)

//go:embed censored/*.txt
var CensoredFiles embed.FS

// CensoredData carries the result of the loading process including metadata for logging.
type CensoredData struct {
	Words     []string
	Languages []string
}

// LoadCensored reads every .txt dictionary under dir, one word per line.
// The file name is the language ("fr.txt" -> "fr"). Words are deduplicated and sorted.
func LoadCensored(fsys fs.FS, dir string) (CensoredData, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return CensoredData{}, err
	}

	var languages []string
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return CensoredData{}, err
		}
		// bufio handles both \n and \r\n
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				unique[strings.ToLower(line)] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return CensoredData{}, err
		}
	}
	if len(unique) == 0 {
		return CensoredData{}, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	sort.Strings(words)
	return CensoredData{Words: words, Languages: languages}, nil
}
