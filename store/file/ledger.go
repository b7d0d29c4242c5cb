package file

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/kirsrus/attendance/server/model"

	"github.com/google/renameio"
	"github.com/juju/errors"
)

// LoadRecords читает журнал посещений. Отсутствующий журнал создаётся с заголовком
func (m *Files) LoadRecords() ([]model.AttendanceRecord, error) {
	f, err := os.Open(m.ledgerFile)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Infof("журнал %s не найден, создаём новый", m.ledgerFile)
			return []model.AttendanceRecord{}, errors.Trace(m.createLedger())
		}
		return nil, errors.Annotatef(err, "ошибка открытия %s", m.ledgerFile)
	}
	defer f.Close()

	res, err := parseLedger(f)
	if err != nil {
		return nil, model.NewCorruptState(m.ledgerFile, err)
	}
	return res, nil
}

// parseLedger разбор журнала в формате csv с заголовком model.LedgerHeader
func parseLedger(r io.Reader) ([]model.AttendanceRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(model.LedgerHeader)

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("отсутствует заголовок")
		}
		return nil, errors.Trace(err)
	}
	for i, v := range model.LedgerHeader {
		if header[i] != v {
			return nil, errors.Errorf("колонка %d заголовка %q, ожидается %q", i+1, header[i], v)
		}
	}

	res := make([]model.AttendanceRecord, 0)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		date, err := time.ParseInLocation(model.DateLayout, row[2], time.Local)
		if err != nil {
			return nil, errors.Errorf("строка %d: некорректная дата %q", line, row[2])
		}
		clock, err := model.ParseClock(row[3])
		if err != nil {
			return nil, errors.Errorf("строка %d: некорректное время %q", line, row[3])
		}
		status, ok := model.ParseStatus(row[4])
		if !ok {
			return nil, errors.Errorf("строка %d: неизвестный статус %q", line, row[4])
		}
		res = append(res, model.AttendanceRecord{
			Name:       row[0],
			ExternalID: row[1],
			Date:       date,
			Time:       clock,
			Status:     status,
			PhotoPath:  row[5],
		})
	}
	return res, nil
}

// encodeRows строки журнала в формате csv
func encodeRows(rows ...[]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}

// createLedger атомарно создаёт журнал с одним заголовком
func (m *Files) createLedger() error {
	content, err := encodeRows(model.LedgerHeader)
	if err != nil {
		return errors.Trace(err)
	}
	if err := renameio.WriteFile(m.ledgerFile, content, 0644); err != nil {
		return errors.Annotatef(err, "ошибка создания журнала %s", m.ledgerFile)
	}
	return nil
}

// AppendRecord дописывает строку в журнал одной записью с синхронизацией на диск
func (m *Files) AppendRecord(record model.AttendanceRecord) error {
	if _, err := os.Stat(m.ledgerFile); os.IsNotExist(err) {
		if err := m.createLedger(); err != nil {
			return errors.Trace(err)
		}
	}
	content, err := encodeRows(record.Row())
	if err != nil {
		return errors.Trace(err)
	}

	f, err := os.OpenFile(m.ledgerFile, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Annotatef(err, "ошибка открытия журнала %s", m.ledgerFile)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return errors.Annotatef(err, "ошибка записи в журнал %s", m.ledgerFile)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Annotatef(err, "ошибка синхронизации журнала %s", m.ledgerFile)
	}
	return errors.Trace(f.Close())
}

// ResetRecords откладывает нечитаемый журнал и создаёт новый
func (m *Files) ResetRecords() error {
	if err := quarantine(m.log, m.ledgerFile); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.createLedger())
}

// WriteReport атомарно записывает журнал records в файл path в формате журнала
func WriteReport(path string, records []model.AttendanceRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, model.LedgerHeader)
	for _, v := range records {
		rows = append(rows, v.Row())
	}
	content, err := encodeRows(rows...)
	if err != nil {
		return errors.Trace(err)
	}
	if err := renameio.WriteFile(path, content, 0644); err != nil {
		return errors.Annotatef(err, "ошибка записи отчёта %s", path)
	}
	return nil
}
