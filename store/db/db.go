package db

import (
	"context"
	"strings"
	"time"

	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/tool"
	"github.com/kirsrus/attendance/server/store"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Db обращение к базе данных. Инициируется через NewDb
type Db struct {
	ctx    context.Context
	log    *logrus.Entry
	db     *gorm.DB
	dbFile string
}

// ConfigDb конфигурация класса NewDb
type ConfigDb struct {
	Log    *logrus.Logger
	DbFile string
}

// NewDb конструктор класса Db
func NewDb(ctx context.Context, config *ConfigDb) (*Db, error) {
	if config == nil {
		return nil, errors.New("не указана конфигурация")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if config.DbFile == "" {
		return nil, errors.New("в конфигурации не указана строка подключения")
	}

	// Подключаемся к БД и запускаем миграции
	conn, err := gorm.Open(sqlite.Open(config.DbFile), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, errors.Annotate(err, "ошибка подключения к файлу БД")
	}
	err = conn.AutoMigrate(Config{}, Face{}, Attendance{})
	if err != nil {
		return nil, errors.Annotate(err, "ошибка миграции БД")
	}

	db := Db{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "db",
			"scope":  "store",
		}),
		db:     conn,
		dbFile: config.DbFile,
	}
	return &db, nil
}

var _ store.Store = (*Db)(nil)

// isNotFound проверяет, что ошибка err обозначает, что записи не найдены
func isNotFound(err error) bool {
	return err != nil && err.Error() == gorm.ErrRecordNotFound.Error()
}

// isUnique проверяет, что ошибка err - нарушение уникального индекса
func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Close закрывает соединение с БД
func (m *Db) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sqlDB.Close())
}

// LoadIdentities читает реестр персон
func (m *Db) LoadIdentities() ([]model.Identity, error) {
	faces := make([]Face, 0)
	if err := m.db.Order("position, id").Find(&faces).Error; err != nil {
		return nil, errors.Trace(err)
	}
	res, err := identitiesFromFaces(faces)
	if err != nil {
		return nil, model.NewCorruptState(m.dbFile+"#faces", err)
	}
	return res, nil
}

// SaveIdentities заменяет реестр персон в одной транзакции
func (m *Db) SaveIdentities(identities []model.Identity) error {
	faces, err := facesFromIdentities(identities)
	if err != nil {
		return errors.Trace(err)
	}
	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Face{}).Error; err != nil {
			return errors.Trace(err)
		}
		if len(faces) == 0 {
			return nil
		}
		return errors.Trace(tx.Create(&faces).Error)
	})
	if err != nil {
		m.log.Error(err)
		return errors.Annotate(err, "ошибка сохранения реестра")
	}
	return nil
}

// ResetIdentities копирует нечитаемую таблицу реестра в резервную и очищает её
func (m *Db) ResetIdentities() error {
	return errors.Trace(m.reset(Face{}.TableName()))
}

// reset копирует таблицу в <таблица>_corrupt_<время> и очищает исходную
func (m *Db) reset(table string) error {
	target := table + "_corrupt_" + time.Now().Format(tool.ReportLayout)
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE TABLE " + target + " AS SELECT * FROM " + table).Error; err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Exec("DELETE FROM " + table).Error)
	})
	if err != nil {
		return errors.Annotatef(err, "ошибка переноса таблицы %s", table)
	}
	m.log.Warnf("повреждённая таблица %s перенесена в %s", table, target)
	return nil
}

// LoadRecords читает журнал посещений в порядке добавления
func (m *Db) LoadRecords() ([]model.AttendanceRecord, error) {
	rows := make([]Attendance, 0)
	if err := m.db.Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	res := make([]model.AttendanceRecord, 0, len(rows))
	for _, v := range rows {
		record, err := v.ToRecord()
		if err != nil {
			return nil, model.NewCorruptState(m.dbFile+"#attendance_log", err)
		}
		res = append(res, record)
	}
	return res, nil
}

// AppendRecord добавляет отметку в журнал. Повторная отметка персоны за день возвращает ошибку,
// проверяемую errors.IsAlreadyExists
func (m *Db) AppendRecord(record model.AttendanceRecord) error {
	var row Attendance
	row.FromRecord(record)
	if err := m.db.Create(&row).Error; err != nil {
		if isUnique(err) {
			return errors.AlreadyExistsf("отметка %s за %s", record.Name, record.DateString())
		}
		m.log.Error(err)
		return errors.Trace(err)
	}
	return nil
}

// ResetRecords копирует нечитаемую таблицу журнала в резервную и очищает её
func (m *Db) ResetRecords() error {
	return errors.Trace(m.reset(Attendance{}.TableName()))
}

// LoadSchedule читает расписание
func (m *Db) LoadSchedule() (*model.ScheduleRecord, error) {
	var cfg Config
	if err := m.db.Order("id").First(&cfg).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.NotFoundf("расписание")
		}
		return nil, errors.Trace(err)
	}
	record := cfg.ToRecord()
	return &record, nil
}

// SaveSchedule заменяет расписание целиком
func (m *Db) SaveSchedule(record model.ScheduleRecord) error {
	var cfg Config
	if err := m.db.Order("id").First(&cfg).Error; err != nil && !isNotFound(err) {
		return errors.Trace(err)
	}
	cfg.FromRecord(record)
	if err := m.db.Save(&cfg).Error; err != nil {
		m.log.Error(err)
		return errors.Annotate(err, "ошибка сохранения расписания")
	}
	return nil
}
