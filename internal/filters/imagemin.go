package filters

import (
	"bytes"
	"context"
	"image/gif"
	"image/jpeg"
	"image/png"
)

// imagemin re-encodes images losslessly and keeps the result only when it is
// smaller. JPEGs are re-encoded (lossy) only when with.jpeg_quality is set.
func newImagemin(o Options) (Filter, error) {
	quality := o.Int("jpeg_quality", 0)
	return Func{
		FilterName: "imagemin",
		Fn: func(_ context.Context, f *File) ([]*File, error) {
			var (
				out []byte
				err error
			)
			switch f.Ext() {
			case ".png":
				out, err = optimizePNG(f.Contents)
			case ".gif":
				out, err = optimizeGIF(f.Contents)
			case ".jpg", ".jpeg":
				if quality > 0 {
					out, err = optimizeJPEG(f.Contents, quality)
				}
			case ".svg":
				out, err = sharedMinifier().Bytes(mimeSVG, f.Contents)
			}
			if err != nil {
				return nil, err
			}
			if out != nil && len(out) < len(f.Contents) {
				f.Contents = out
			}
			return []*File{f}, nil
		},
	}, nil
}

func optimizePNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optimizeGIF(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optimizeJPEG(data []byte, quality int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
