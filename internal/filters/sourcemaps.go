package filters

import (
	"context"
	"encoding/base64"
	"path"
)

func newSourcemapsInit(Options) (Filter, error) {
	return Func{
		FilterName: "sourcemaps-init",
		Fn: func(_ context.Context, f *File) ([]*File, error) {
			f.WantSourceMap = true
			return []*File{f}, nil
		},
	}, nil
}

// sourcemaps-write emits the map collected by an earlier compiler stage,
// either as a sibling ".map" file (default) or inline when with.inline is true.
func newSourcemapsWrite(o Options) (Filter, error) {
	inline := o.Bool("inline", false)
	return Func{
		FilterName: "sourcemaps-write",
		Fn: func(_ context.Context, f *File) ([]*File, error) {
			if len(f.SourceMap) == 0 {
				return []*File{f}, nil
			}
			sm := f.SourceMap
			f.SourceMap = nil

			if inline {
				f.Contents = appendMappingURL(f.Contents, "data:application/json;charset=utf-8;base64,"+base64.StdEncoding.EncodeToString(sm))
				return []*File{f}, nil
			}

			mapFile := &File{
				Path:     f.Path + ".map",
				Source:   f.Source,
				Contents: sm,
				Mode:     f.Mode,
			}
			f.Contents = appendMappingURL(f.Contents, path.Base(mapFile.Path))
			return []*File{f, mapFile}, nil
		},
	}, nil
}

func appendMappingURL(css []byte, url string) []byte {
	out := append([]byte(nil), css...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return append(out, []byte("/*# sourceMappingURL="+url+" */\n")...)
}
