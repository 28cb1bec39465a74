// Package transpile turns TypeScript configuration files into CommonJS the
// script runtime can evaluate.
package transpile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/evanw/esbuild/pkg/api"
)

var ErrTranspile = fmt.Errorf("error transpiling typescript")

func TranspileTypescript(ctx context.Context, filename string, reader io.Reader) (string, error) {
	src, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result := api.Transform(string(src), api.TransformOptions{
		Loader:     api.LoaderTS,
		Format:     api.FormatCommonJS,
		Target:     api.ES2015,
		Sourcefile: filename,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors)+1)
		errs = append(errs, ErrTranspile)
		for _, m := range result.Errors {
			if m.Location != nil {
				errs = append(errs, fmt.Errorf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			} else {
				errs = append(errs, errors.New(m.Text))
			}
		}
		return "", errors.Join(errs...)
	}
	return string(result.Code), nil
}
