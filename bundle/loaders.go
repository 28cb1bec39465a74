package bundle

import (
	"fmt"

	"go.miragespace.co/bundlecfg"

	"github.com/evanw/esbuild/pkg/api"
)

// Extensions probed against module rules when choosing esbuild loaders.
var probeExtensions = []string{
	".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".json",
	".css", ".scss", ".sass", ".less",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".woff", ".woff2", ".ttf", ".eot",
	".txt", ".html",
}

// Loaders esbuild has no equivalent for. Rules using them are skipped with a
// warning.
var unsupportedLoaders = map[string]bool{
	"sass-loader":   true,
	"less-loader":   true,
	"stylus-loader": true,
	"vue-loader":    true,
}

// Loaders that only post-process another loader's output.
var passthroughLoaders = map[string]bool{
	"image-webpack-loader": true,
	"postcss-loader":       true,
	"resolve-url-loader":   true,
	"source-map-loader":    true,
	"eslint-loader":        true,
}

// translateLoaders picks an esbuild loader for every probed extension that a
// module rule matches. The leftmost loader in a chain produces the final
// output, so it decides.
func translateLoaders(cfg *bundlecfg.Config) (map[string]api.Loader, []string) {
	extensions := append(append([]string(nil), cfg.Resolve.Extensions...), probeExtensions...)

	var warnings []string
	loaders := make(map[string]api.Loader)
	seen := make(map[string]bool)
	for _, ext := range extensions {
		if ext == "" || ext[0] != '.' || seen[ext] {
			continue
		}
		seen[ext] = true

		for i, rule := range cfg.Module.Rules {
			if !testsExtension(rule, ext) {
				continue
			}
			loader, ok, reason := chainLoader(ext, rule)
			if !ok {
				if reason != "" {
					warnings = append(warnings, fmt.Sprintf("module.rules[%d]: %s files: %s", i, ext, reason))
				}
				continue
			}
			loaders[ext] = loader
			break
		}
	}
	return loaders, warnings
}

// testsExtension only looks at a rule's test conditions. esbuild picks
// loaders per extension, so include and exclude paths cannot be honored.
func testsExtension(rule bundlecfg.Rule, ext string) bool {
	for _, p := range rule.Test {
		if p.MatchString("file" + ext) {
			return true
		}
	}
	return false
}

func chainLoader(ext string, rule bundlecfg.Rule) (api.Loader, bool, string) {
	for _, l := range rule.Use {
		if unsupportedLoaders[l.Name] {
			return api.LoaderNone, false, fmt.Sprintf("%s is not supported", l.Name)
		}
	}

	for _, l := range rule.Use {
		if passthroughLoaders[l.Name] {
			continue
		}
		switch l.Name {
		case "babel-loader", "buble-loader":
			switch ext {
			case ".ts":
				return api.LoaderTS, true, ""
			case ".tsx":
				return api.LoaderTSX, true, ""
			default:
				return api.LoaderJSX, true, ""
			}
		case "ts-loader", "awesome-typescript-loader":
			if ext == ".tsx" {
				return api.LoaderTSX, true, ""
			}
			return api.LoaderTS, true, ""
		case "style-loader", "css-loader",
			"vue-style-loader",
			bundlecfg.ExtractLoaderName, bundlecfg.MiniCSSLoaderName:
			return api.LoaderCSS, true, ""
		case "url-loader":
			// esbuild has no size threshold; anything with a limit is
			// emitted as a file.
			if _, hasLimit := l.Options["limit"]; hasLimit {
				return api.LoaderFile, true, ""
			}
			return api.LoaderDataURL, true, ""
		case "file-loader":
			return api.LoaderFile, true, ""
		case "raw-loader":
			return api.LoaderText, true, ""
		case "json-loader":
			return api.LoaderJSON, true, ""
		default:
			return api.LoaderNone, false, fmt.Sprintf("unknown loader %s", l.Name)
		}
	}
	return api.LoaderNone, false, ""
}
