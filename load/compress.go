package load

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/profile"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Decompress inflates gzip and zstd data; anything else is returned as is.
func Decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errs.Wrap(err)
		}
		defer func() { _ = r.Close() }()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Wrap(err)
		}
		return out, nil

	case bytes.HasPrefix(data, zstdMagic):
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errs.Wrap(err)
		}
		defer decoder.Close()
		out, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, errs.Wrap(err)
		}
		return out, nil
	}
	return data, nil
}

// Encode writes p as native JSON, compressed according to the extension
// of name: ".gz" for gzip and ".zst" for zstd.
func Encode(w io.Writer, name string, p *profile.Profile) (err error) {
	var compressed io.WriteCloser
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		compressed = gzip.NewWriter(w)
	case ".zst", ".zstd":
		compressed, err = zstd.NewWriter(w)
		if err != nil {
			return errs.Wrap(err)
		}
	}
	if compressed != nil {
		defer func() {
			if closeErr := compressed.Close(); err == nil {
				err = errs.Wrap(closeErr)
			}
		}()
		w = compressed
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(p); err != nil {
		return errs.Wrap(err)
	}
	return nil
}

// Write stores p at path, see Encode.
func Write(path string, p *profile.Profile) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = errs.Wrap(closeErr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := Encode(w, path, p); err != nil {
		return err
	}
	return errs.Wrap(w.Flush())
}
