package filters

import (
	"context"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

const (
	mimeHTML = "text/html"
	mimeCSS  = "text/css"
	mimeJS   = "application/javascript"
	mimeSVG  = "image/svg+xml"
)

var (
	minifierOnce sync.Once
	minifier     *minify.M
)

// sharedMinifier returns the process-wide minifier. minify.M is safe for
// concurrent use once configured.
func sharedMinifier() *minify.M {
	minifierOnce.Do(func() {
		m := minify.New()
		m.Add(mimeHTML, &html.Minifier{
			KeepDocumentTags: true,
			KeepEndTags:      true,
			KeepQuotes:       true,
		})
		m.AddFunc(mimeCSS, css.Minify)
		m.AddFunc(mimeJS, js.Minify)
		m.AddFunc(mimeSVG, svg.Minify)
		minifier = m
	})
	return minifier
}

func minifyFilter(name, mime string) Filter {
	return Func{
		FilterName: name,
		Fn: func(_ context.Context, f *File) ([]*File, error) {
			out, err := sharedMinifier().Bytes(mime, f.Contents)
			if err != nil {
				return nil, err
			}
			f.Contents = out
			return []*File{f}, nil
		},
	}
}

// htmlmin collapses whitespace, strips comments and drops attributes that
// carry their default value.
func newHTMLMin(Options) (Filter, error) { return minifyFilter("htmlmin", mimeHTML), nil }

func newCSSMin(Options) (Filter, error) { return minifyFilter("cssmin", mimeCSS), nil }

func newJSMin(Options) (Filter, error) { return minifyFilter("jsmin", mimeJS), nil }
