package reputation

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ObjectFetcher reads an object from remote storage.
type ObjectFetcher interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

type fileFormat struct {
	Disposable []string    `yaml:"disposable"`
	Providers  []Signature `yaml:"providers"`
}

// Load reads a table from a local path or an s3://bucket/key URL. A YAML
// document may carry `disposable` and `providers`; any other file is read as a
// newline separated domain list with '#' comments. Provider signatures fall
// back to the defaults when the file carries none.
func Load(ctx context.Context, path string, fetcher ObjectFetcher) (*Table, error) {
	var (
		data []byte
		err  error
	)

	if rest, ok := strings.CutPrefix(path, "s3://"); ok {
		if fetcher == nil {
			return nil, errors.New("s3 path given without an object fetcher")
		}
		bucket, key, _ := strings.Cut(rest, "/")
		data, err = fetcher.GetObject(ctx, bucket, key)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read domain table %s: %w", path, err)
	}

	return Parse(data, filepath.Ext(path))
}

// Parse decodes table data; ext selects the format (".yaml"/".yml" or plain list).
func Parse(data []byte, ext string) (*Table, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var f fileFormat
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse domain table: %w", err)
		}
		signatures := f.Providers
		if len(signatures) == 0 {
			signatures = DefaultSignatures()
		}
		return New(f.Disposable, signatures), nil
	default:
		return New(parseList(data), DefaultSignatures()), nil
	}
}

func parseList(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
