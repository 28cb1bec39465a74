package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderFilename(t *testing.T) {
	as := require.New(t)

	p := nameParams{
		Name:        "index",
		ID:          3,
		Ext:         ".js",
		Hash:        "0123456789abcdef0123456789abcdef",
		ContentHash: "fedcba9876543210fedcba9876543210",
	}

	cases := map[string]string{
		"[name].js":                  "index.js",
		"[name].[id].[hash].js":      "index.3.0123456789abcdef0123.js",
		"[name].[hash:8].js":         "index.01234567.js",
		"js/[name]-[chunkhash:6].js": "js/index-fedcba.js",
		"[contenthash:100][ext]":     "fedcba9876543210fedcba9876543210.js",
		"static.js":                  "static.js",
	}
	for template, expected := range cases {
		as.Equal(expected, renderFilename(template, p), template)
	}
}

func TestStylesTemplate(t *testing.T) {
	as := require.New(t)

	as.Equal("[name].css", stylesTemplate("[name].js"))
	as.Equal("[name].[hash].css", stylesTemplate("[name].[hash].js"))
	as.Equal("bundle.css", stylesTemplate("bundle"))
}
