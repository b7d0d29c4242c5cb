package web

import (
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/juju/errors"
	"github.com/labstack/echo"
)

// Photo снимок-подтверждение по пути из параметра path
func (m *Web) Photo(path string) {
	m.e.GET(path, func(c echo.Context) error {
		name := c.QueryParam("path")
		if name == "" {
			return m.httpError(c, errors.NotValidf("не передан путь к снимку"))
		}
		if m.evidence == nil {
			return m.httpError(c, errors.NotSupportedf("хранилище снимков"))
		}

		content, err := m.evidence.Image(name)
		if err != nil {
			return m.httpError(c, err)
		}
		mime := mimetype.Detect(content).String()
		return c.Blob(http.StatusOK, mime, content)
	})
}
