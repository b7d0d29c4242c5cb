package file

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/kirsrus/attendance/server/model"

	"github.com/google/renameio"
	"github.com/juju/errors"
)

// LoadSchedule читает расписание из json файла
func (m *Files) LoadSchedule() (*model.ScheduleRecord, error) {
	content, err := ioutil.ReadFile(m.scheduleFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("файл расписания %s", m.scheduleFile)
		}
		return nil, errors.Annotatef(err, "ошибка чтения %s", m.scheduleFile)
	}
	var record model.ScheduleRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, model.NewCorruptState(m.scheduleFile, err)
	}
	return &record, nil
}

// SaveSchedule атомарно заменяет файл расписания
func (m *Files) SaveSchedule(record model.ScheduleRecord) error {
	content, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return errors.Trace(err)
	}
	if err := renameio.WriteFile(m.scheduleFile, content, 0644); err != nil {
		return errors.Annotatef(err, "ошибка записи %s", m.scheduleFile)
	}
	return nil
}
