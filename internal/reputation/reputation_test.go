package reputation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cruxstack/email-reachability-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_IsDisposable(t *testing.T) {
	table := Default()

	assert.True(t, table.IsDisposable("mailinator.com"))
	assert.True(t, table.IsDisposable("YOPMAIL.COM"))
	assert.False(t, table.IsDisposable("sub.mailinator.com"), "subdomains must not match")
	assert.False(t, table.IsDisposable("gmail.com"))
	assert.False(t, table.IsDisposable(""))
}

func TestTable_DetectProvider(t *testing.T) {
	table := Default()

	testCases := []struct {
		name  string
		hosts []string
		want  types.Provider
	}{
		{"gmail", []string{"gmail-smtp-in.l.google.com", "alt1.gmail-smtp-in.l.google.com"}, types.ProviderGmail},
		{"outlook", []string{"example-com.mail.protection.outlook.com"}, types.ProviderOutlook},
		{"yahoo", []string{"mta5.am0.yahoodns.net"}, types.ProviderYahoo},
		{"other", []string{"mx.example.org"}, types.ProviderOther},
		{"empty", nil, types.ProviderOther},
		{"gmail wins over yahoo", []string{"mx.yahoodns.net", "aspmx.l.google.com"}, types.ProviderGmail},
		{"case insensitive", []string{"ASPMX.L.GOOGLE.COM"}, types.ProviderGmail},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, table.DetectProvider(tc.hosts))
		})
	}
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
disposable:
  - burner.test
  - Throwaway.Test
providers:
  - name: gmail
    matches: [mx.burner.test]
`)
	table, err := Parse(data, ".yaml")
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.True(t, table.IsDisposable("throwaway.test"))
	assert.False(t, table.IsDisposable("mailinator.com"), "file replaces the built-in list")
	assert.Equal(t, types.ProviderGmail, table.DetectProvider([]string{"mx.burner.test"}))
	assert.Equal(t, types.ProviderOther, table.DetectProvider([]string{"aspmx.l.google.com"}))
}

func TestParse_YAMLWithoutProvidersKeepsDefaults(t *testing.T) {
	table, err := Parse([]byte("disposable: [burner.test]\n"), ".yml")
	require.NoError(t, err)
	assert.Equal(t, types.ProviderGmail, table.DetectProvider([]string{"aspmx.l.google.com"}))
}

func TestParse_List(t *testing.T) {
	data := []byte("# curated\nburner.test\n\n  other.test  # trailing comment\n")
	table, err := Parse(data, ".txt")
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.True(t, table.IsDisposable("other.test"))
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("disposable: [unterminated"), ".yaml")
	assert.Error(t, err)
}

type fakeFetcher struct {
	data   []byte
	err    error
	bucket string
	key    string
}

func (f *fakeFetcher) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	f.bucket, f.key = bucket, key
	return f.data, f.err
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, os.WriteFile(path, []byte("burner.test\n"), 0o600))

	table, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.True(t, table.IsDisposable("burner.test"))
}

func TestLoad_S3(t *testing.T) {
	f := &fakeFetcher{data: []byte("disposable: [burner.test]\n")}

	table, err := Load(context.Background(), "s3://tables/reputation/domains.yaml", f)
	require.NoError(t, err)
	assert.Equal(t, "tables", f.bucket)
	assert.Equal(t, "reputation/domains.yaml", f.key)
	assert.True(t, table.IsDisposable("burner.test"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), "s3://tables/domains.txt", nil)
	assert.Error(t, err)

	_, err = Load(context.Background(), "s3://tables/domains.txt", &fakeFetcher{err: errors.New("access denied")})
	assert.ErrorContains(t, err, "access denied")

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}
