package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndisidore/mixup/pkg/markup"
	"github.com/ndisidore/mixup/pkg/parser"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		file      string
		content   string
		opts      Options
		want      string
		wantNodes int
	}{
		{
			name:      "kdl document",
			file:      "page.kdl",
			content:   `html lang="en" { body { p "hello"; }; }`,
			want:      `<html lang="en"><body><p>hello</p></body></html>`,
			wantNodes: 4,
		},
		{
			name:      "yaml document",
			file:      "page.yaml",
			content:   "- ~: [root, {\"#comment\": note}]\n",
			want:      `<root><!--note--></root>`,
			wantNodes: 2,
		},
		{
			name:      "args reach callables",
			file:      "args.kdl",
			content:   `p "{{ arg(0) }}"`,
			opts:      Options{Args: []any{"from cli"}},
			want:      `<p>from cli</p>`,
			wantNodes: 2,
		},
		{
			name:      "indent",
			file:      "indent.kdl",
			content:   `a { b; }`,
			opts:      Options{Indent: 2},
			want:      "<a>\n  <b/>\n</a>",
			wantNodes: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			res, err := Build(context.Background(), path, tt.opts)
			require.NoError(t, err)

			assert.Equal(t, tt.want, strings.TrimSpace(string(res.Bytes)))
			assert.Equal(t, digest.FromBytes(res.Bytes), res.Digest)
			assert.Equal(t, tt.wantNodes, res.Counts.Total())
			assert.NotNil(t, res.Doc)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{
			name:    "unknown format",
			file:    "page.txt",
			content: "hi",
			wantErr: parser.ErrUnknownFormat,
		},
		{
			name:    "unresolvable prefix",
			file:    "ns.kdl",
			content: `"x:root"`,
			wantErr: markup.ErrUnresolvableNamespacePrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := Build(context.Background(), path, Options{})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), path)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Build(context.Background(), filepath.Join(t.TempDir(), "nope.kdl"), Options{})
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestBuildSpec(t *testing.T) {
	t.Parallel()

	spec := markup.Seq{markup.M(nil, []any{"root", "text"})}
	res, err := BuildSpec(context.Background(), spec, Options{MaxDepth: 8})
	require.NoError(t, err)
	assert.Equal(t, `<root>text</root>`, string(res.Bytes))
	assert.Equal(t, 1, res.Counts.Elements)
	assert.Equal(t, 1, res.Counts.Text)
}
