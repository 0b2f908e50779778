package api

import (
	"errors"
	"io"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// decodeBody reads a JSON request body capped at maxRequestBody. When
// allowEmpty is set an absent body leaves v untouched, which lets PATCH
// routes distinguish "no body" from an explicit field.
func decodeBody(c echo.Context, v any, allowEmpty bool) error {
	lr := io.LimitReader(c.Request().Body, maxRequestBody)
	if err := sonic.ConfigStd.NewDecoder(lr).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
