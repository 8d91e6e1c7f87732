package sourcedir

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestLoadIgnorePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		setup   func(t *testing.T, dir string)
		want    []string
		wantErr error
	}{
		{
			name:  "patterns read",
			files: map[string]string{".mixupignore": "drafts/\n*.json\n"},
			want:  []string{"drafts/", "*.json"},
		},
		{
			name:    "no ignore file returns ErrNoIgnoreFile",
			wantErr: ErrNoIgnoreFile,
		},
		{
			name: "blank lines and comments skipped",
			files: map[string]string{
				".mixupignore": "# partials\n\n_*.kdl\n\n# another\ntmp/\n",
			},
			want: []string{"_*.kdl", "tmp/"},
		},
		{
			name:  "whitespace trimmed",
			files: map[string]string{".mixupignore": "  old.yaml  \n  dist/  \n"},
			want:  []string{"old.yaml", "dist/"},
		},
		{
			name:  "unreadable ignore file returns error",
			files: map[string]string{".mixupignore": ""},
			setup: func(t *testing.T, dir string) {
				t.Helper()
				if runtime.GOOS == "windows" || os.Geteuid() == 0 {
					t.Skip("permission test needs a non-root unix user")
				}
				require.NoError(t, os.Chmod(filepath.Join(dir, ".mixupignore"), 0o000))
			},
			wantErr: os.ErrPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeTree(t, dir, tt.files)
			if tt.setup != nil {
				tt.setup(t, dir)
			}

			got, err := LoadIgnorePatterns(dir)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		files    map[string]string
		excludes []string
		want     []string
		wantErr  error
	}{
		{
			name: "all formats sorted",
			files: map[string]string{
				"index.kdl":      `html`,
				"about.yaml":     `- [~, p]`,
				"blog/post.json": `[]`,
				"blog/feed.yml":  `- [~, feed]`,
				"README.md":      "docs",
				"out/index.xml":  "<html/>",
				".mixup-digests": "{}",
			},
			want: []string{"about.yaml", "blog/feed.yml", "blog/post.json", "index.kdl"},
		},
		{
			name: "ignore file honoured",
			files: map[string]string{
				".mixupignore":      "partials\n",
				"index.kdl":         `html`,
				"partials/head.kdl": `head`,
			},
			want: []string{"index.kdl"},
		},
		{
			name: "default excludes",
			files: map[string]string{
				"index.kdl":                  `html`,
				"node_modules/pkg/page.json": `[]`,
			},
			want: []string{"index.kdl"},
		},
		{
			name: "extra excludes",
			files: map[string]string{
				"index.kdl": `html`,
				"draft.kdl": `html`,
			},
			excludes: []string{"draft.kdl"},
			want:     []string{"index.kdl"},
		},
		{
			name:    "no sources",
			files:   map[string]string{"notes.txt": "hi"},
			wantErr: ErrNoSources,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeTree(t, dir, tt.files)

			got, err := Discover(context.Background(), dir, tt.excludes...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
