package web

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/kirsrus/attendance/server/model"

	"github.com/juju/errors"
	"github.com/labstack/echo"
)

const encodeTimeout = 10 * time.Second

// Api регистрирует хэндлеры REST API с префиксом prefix
func (m *Web) Api(prefix string) {
	g := m.e.Group(prefix)
	g.GET("/identities", m.listIdentities)
	g.POST("/identities", m.addIdentity)
	g.DELETE("/identities/:index", m.removeIdentity)
	g.POST("/probe", m.probe)
	g.GET("/attendance", m.getAttendance)
	g.GET("/summary", m.summary)
	g.POST("/reports", m.export)
	g.GET("/schedule", m.getSchedule)
	g.PUT("/schedule", m.putSchedule)
	g.GET("/cameras", m.listCameras)
}

// decodeImage изображение из base64
func decodeImage(s string) ([]byte, error) {
	content, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.NewNotValid(err, "изображение не в base64")
	}
	if len(content) == 0 {
		return nil, errors.NotValidf("пустое изображение")
	}
	return content, nil
}

// encode дескрипторы лиц на изображении
func (m *Web) encode(ctx context.Context, image []byte) ([]model.Face, error) {
	if m.encoder == nil {
		return nil, errors.NotSupportedf("распознавание изображений без кодировщика")
	}
	ctx, cancel := context.WithTimeout(ctx, encodeTimeout)
	defer cancel()
	faces, err := m.encoder.Encode(ctx, image)
	if errors.Cause(err) == context.DeadlineExceeded {
		return nil, errors.Timeoutf("ответ кодировщика")
	}
	return faces, errors.Trace(err)
}

// parseDay дата из параметра date в формате журнала. Без параметра - текущий день
func (m *Web) parseDay(c echo.Context) (time.Time, error) {
	date := c.QueryParam("date")
	if date == "" {
		return m.now(), nil
	}
	day, err := time.ParseInLocation(model.DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, errors.NotValidf("дата %q", date)
	}
	return day, nil
}

func (m *Web) listIdentities(c echo.Context) error {
	return c.JSON(http.StatusOK, m.registry.List())
}

func (m *Web) addIdentity(c echo.Context) error {
	var form model.IdentityForm
	if err := c.Bind(&form); err != nil {
		return m.httpError(c, errors.NewNotValid(err, "некорректный запрос"))
	}
	if err := m.validator.Validate(&form); err != nil {
		return m.httpError(c, errors.NewNotValid(err, "некорректные данные персоны"))
	}

	var image []byte
	descriptor := form.Descriptor
	if descriptor.IsEmpty() {
		if form.Image == "" {
			return m.httpError(c, errors.NotValidf("не передан ни дескриптор, ни изображение"))
		}
		var err error
		if image, err = decodeImage(form.Image); err != nil {
			return m.httpError(c, err)
		}
		faces, err := m.encode(c.Request().Context(), image)
		if err != nil {
			return m.httpError(c, err)
		}
		if len(faces) == 0 {
			return m.httpError(c, errors.NotValidf("на изображении не найдено лиц"))
		}
		descriptor = faces[0].Descriptor
	}

	ref, created, err := m.attendance.Enroll(form.Name, form.ExternalID, descriptor, image)
	if err != nil {
		return m.httpError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, ref)
}

func (m *Web) removeIdentity(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return m.httpError(c, errors.NotValidf("номер персоны %q", c.Param("index")))
	}
	removed, err := m.registry.Remove(index)
	if err != nil {
		return m.httpError(c, err)
	}
	return c.JSON(http.StatusOK, removed.Ref(index))
}

// probe распознавание дескриптора или всех лиц на изображении с отметкой в журнале
func (m *Web) probe(c echo.Context) error {
	var form model.ProbeForm
	if err := c.Bind(&form); err != nil {
		return m.httpError(c, errors.NewNotValid(err, "некорректный запрос"))
	}

	probes := make([]model.Probe, 0)
	capturedAt := m.now()
	if !form.Descriptor.IsEmpty() {
		probes = append(probes, model.Probe{CameraID: form.CameraID, CapturedAt: capturedAt, Descriptor: form.Descriptor})
	} else {
		if form.Image == "" {
			return m.httpError(c, errors.NotValidf("не передан ни дескриптор, ни изображение"))
		}
		image, err := decodeImage(form.Image)
		if err != nil {
			return m.httpError(c, err)
		}
		faces, err := m.encode(c.Request().Context(), image)
		if err != nil {
			return m.httpError(c, err)
		}
		for _, v := range faces {
			probes = append(probes, model.Probe{CameraID: form.CameraID, CapturedAt: capturedAt, Descriptor: v.Descriptor, Box: v.Box, Frame: image})
		}
	}

	res := make([]model.AttendanceChange, 0, len(probes))
	for _, probe := range probes {
		outcome, err := m.attendance.OnProbe(c.Request().Context(), probe)
		if err != nil {
			return m.httpError(c, err)
		}
		change := model.NewAttendanceChange(probe, outcome)
		m.AttendanceChanged(change)
		res = append(res, change)
	}
	return c.JSON(http.StatusOK, res)
}

func (m *Web) getAttendance(c echo.Context) error {
	var records []model.AttendanceRecord
	if c.QueryParam("date") == "" {
		records = m.ledger.Records(nil)
	} else {
		day, err := m.parseDay(c)
		if err != nil {
			return m.httpError(c, err)
		}
		records = m.ledger.Records(&day)
	}
	res := make([]model.AttendanceView, 0, len(records))
	for _, v := range records {
		res = append(res, model.NewAttendanceView(v))
	}
	return c.JSON(http.StatusOK, res)
}

func (m *Web) summary(c echo.Context) error {
	day, err := m.parseDay(c)
	if err != nil {
		return m.httpError(c, err)
	}
	return c.JSON(http.StatusOK, m.ledger.Summary(day))
}

func (m *Web) export(c echo.Context) error {
	path, err := m.ledger.Export(m.reportDir, m.now())
	if err != nil {
		return m.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"path": path})
}

func (m *Web) getSchedule(c echo.Context) error {
	return c.JSON(http.StatusOK, m.schedule.Current().Form())
}

func (m *Web) putSchedule(c echo.Context) error {
	var form model.ScheduleForm
	if err := c.Bind(&form); err != nil {
		return m.httpError(c, errors.NewNotValid(err, "некорректный запрос"))
	}
	schedule, err := m.schedule.Update(form)
	if err != nil {
		return m.httpError(c, err)
	}
	return c.JSON(http.StatusOK, schedule.Form())
}

func (m *Web) listCameras(c echo.Context) error {
	return c.JSON(http.StatusOK, m.cameras)
}
