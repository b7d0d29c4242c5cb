package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/tool"
	"github.com/kirsrus/attendance/server/store"
	"github.com/kirsrus/attendance/server/store/file"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// markKey ключ отметки: персона и дата в формате журнала
type markKey struct {
	name string
	date string
}

// Ledger журнал посещений. Не более одной отметки персоны за день. Инициируется через NewLedger
type Ledger struct {
	ctx   context.Context
	log   *logrus.Entry
	store store.LedgerStore

	// Проверка и добавление отметки выполняются под одной блокировкой
	mu      sync.RWMutex
	records []model.AttendanceRecord
	marked  map[markKey]int
}

// ConfigLedger конфигурация Ledger
type ConfigLedger struct {
	Log *logrus.Logger
}

// NewLedger конструктор Ledger. Читает журнал из хранилища. Нечитаемый журнал откладывается
// в сторону и начинается новый
func NewLedger(ctx context.Context, ledgerStore store.LedgerStore, config *ConfigLedger) (*Ledger, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if ledgerStore == nil {
		return nil, errors.New("не указано хранилище журнала")
	}

	ledger := Ledger{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "ledger",
			"scope":  "controller",
		}),
		store:   ledgerStore,
		records: make([]model.AttendanceRecord, 0),
		marked:  make(map[markKey]int),
	}

	records, err := ledgerStore.LoadRecords()
	if err != nil {
		if !model.IsCorruptState(err) {
			return nil, errors.Annotate(err, "ошибка чтения журнала")
		}
		ledger.log.Errorf("%v, начинаем новый журнал", err)
		if err := ledgerStore.ResetRecords(); err != nil {
			return nil, errors.Trace(err)
		}
		records = nil
	}
	for _, v := range records {
		key := markKey{name: v.Name, date: v.DateString()}
		if _, ok := ledger.marked[key]; ok {
			ledger.log.Warnf("повторная отметка %s за %s в журнале", v.Name, key.date)
		} else {
			ledger.marked[key] = len(ledger.records)
		}
		ledger.records = append(ledger.records, v)
	}
	ledger.log.Infof("загружено отметок: %d", len(ledger.records))

	return &ledger, nil
}

var _ controller.LedgerCtl = (*Ledger)(nil)

// AlreadyMarked персона name уже отмечена в день day
func (m *Ledger) AlreadyMarked(name string, day time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.marked[markKey{name: name, date: day.Format(model.DateLayout)}]
	return ok
}

// Classify опоздание - отметка строго позже начала дня с допустимым опозданием
func (m *Ledger) Classify(markTime model.Clock, schedule model.Schedule) model.Status {
	if markTime > schedule.LateAfter() {
		return model.StatusLate
	}
	return model.StatusOnTime
}

// Commit добавляет отметку персоны на момент markTime. Отметка сначала сохраняется в хранилище
// и только затем становится видимой. Повторная отметка за день возвращает ошибку,
// проверяемую errors.IsAlreadyExists
func (m *Ledger) Commit(name, externalID string, markTime time.Time, photoPath string, schedule model.Schedule) (model.AttendanceRecord, error) {
	record := model.AttendanceRecord{
		Name:       name,
		ExternalID: externalID,
		Date:       tool.RoundToDate(markTime),
		Time:       model.ClockOf(markTime),
		PhotoPath:  photoPath,
	}
	record.Status = m.Classify(record.Time, schedule)
	key := markKey{name: name, date: record.DateString()}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.marked[key]; ok {
		return model.AttendanceRecord{}, errors.AlreadyExistsf("отметка %s за %s", name, key.date)
	}
	if err := m.store.AppendRecord(record); err != nil {
		if errors.IsAlreadyExists(err) {
			return model.AttendanceRecord{}, errors.Trace(err)
		}
		return model.AttendanceRecord{}, errors.Annotate(err, "отметка не сохранена")
	}
	m.marked[key] = len(m.records)
	m.records = append(m.records, record)

	m.log.Infof("отмечен %s (%s) в %s: %s", name, externalID, record.Time, record.Status)
	return record, nil
}

// Summary количество отметок за день day
func (m *Ledger) Summary(day time.Time) model.Summary {
	date := day.Format(model.DateLayout)
	res := model.Summary{Date: date}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.records {
		if !tool.SameDay(v.Date, day) {
			continue
		}
		switch v.Status {
		case model.StatusOnTime:
			res.OnTime++
		case model.StatusLate:
			res.Late++
		}
		res.Total++
	}
	return res
}

// Records записи журнала за день day или все записи, если day=nil, в порядке добавления
func (m *Ledger) Records(day *time.Time) []model.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make([]model.AttendanceRecord, 0, len(m.records))
	if day == nil {
		return append(res, m.records...)
	}
	for _, v := range m.records {
		if tool.SameDay(v.Date, *day) {
			res = append(res, v)
		}
	}
	return res
}

// Export выгружает все записи журнала в файл dir/report_<время>.csv. Занятое имя
// дополняется суффиксом _N. Журнал не изменяется
func (m *Ledger) Export(dir string, now time.Time) (string, error) {
	records := m.Records(nil)

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", errors.Annotatef(err, "ошибка создания директории %s", dir)
	}
	base := "report_" + now.Format(tool.ReportLayout)
	path := filepath.Join(dir, base+".csv")
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", base, i))
	}

	if err := file.WriteReport(path, records); err != nil {
		return "", errors.Trace(err)
	}
	m.log.Infof("журнал выгружен в %s, записей %d", path, len(records))
	return path, nil
}
