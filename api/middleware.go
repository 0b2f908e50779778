package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DecompressRequests lets clients ship bulk payloads gzip-compressed. The
// decompressed stream is capped at maxRequestBody, so a small compressed body
// cannot expand past what decodeBody accepts. Bodies declared gzip that do
// not parse as gzip are rejected with a validation error.
func DecompressRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !requestGzipped(req.Header) {
				return next(c)
			}

			raw := req.Body
			zr, err := gzip.NewReader(raw)
			if err != nil {
				_ = raw.Close()
				return validationError(c, []string{"request body is not valid gzip"})
			}

			req.Body = &decompressedBody{r: io.LimitReader(zr, maxRequestBody), zr: zr, raw: raw}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func requestGzipped(h http.Header) bool {
	for _, enc := range strings.Split(h.Get(echo.HeaderContentEncoding), ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

// decompressedBody reads the capped plaintext stream and closes both the
// gzip reader and the underlying body.
type decompressedBody struct {
	r   io.Reader
	zr  *gzip.Reader
	raw io.Closer
}

func (b *decompressedBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *decompressedBody) Close() error {
	err := b.zr.Close()
	if cerr := b.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
