package schedule

import (
	"context"
	"sync"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/validator"
	"github.com/kirsrus/attendance/server/store"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// Значения расписания по умолчанию
const (
	DefaultWorkStart     = "09:00"
	DefaultWorkEnd       = "17:00"
	DefaultLateThreshold = 15
	DefaultTolerance     = 0.6
	DefaultLocation      = "Main Office"
)

// Default расписание по умолчанию
func Default() model.Schedule {
	workStart, _ := model.ParseClock(DefaultWorkStart)
	workEnd, _ := model.ParseClock(DefaultWorkEnd)
	return model.Schedule{
		WorkStart:     workStart,
		WorkEnd:       workEnd,
		LateThreshold: DefaultLateThreshold,
		Tolerance:     DefaultTolerance,
		Location:      DefaultLocation,
	}
}

// Schedule рабочее расписание. Инициируется через NewSchedule
type Schedule struct {
	ctx       context.Context
	log       *logrus.Entry
	validator *validator.Validator
	store     store.ScheduleStore

	mu      sync.RWMutex
	current model.Schedule
}

// ConfigSchedule конфигурация Schedule
type ConfigSchedule struct {
	Log *logrus.Logger
}

// NewSchedule конструктор Schedule. Сразу читает расписание через Load
func NewSchedule(ctx context.Context, scheduleStore store.ScheduleStore, config *ConfigSchedule) (*Schedule, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if scheduleStore == nil {
		return nil, errors.New("не указано хранилище расписания")
	}

	schedule := Schedule{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "schedule",
			"scope":  "controller",
		}),
		validator: validator.Get(),
		store:     scheduleStore,
		current:   Default(),
	}
	if _, err := schedule.Load(); err != nil {
		return nil, errors.Trace(err)
	}
	return &schedule, nil
}

var _ controller.ScheduleCtl = (*Schedule)(nil)

// merge дополняет запись значениями по умолчанию. Отсутствующие и недопустимые значения
// заменяются, их ключи возвращаются вторым значением
func merge(record *model.ScheduleRecord) (model.Schedule, []string) {
	res := Default()
	replaced := make([]string, 0)

	if record.WorkStart != nil {
		if v, err := model.ParseClock(*record.WorkStart); err == nil {
			res.WorkStart = v
		} else {
			replaced = append(replaced, "work_start")
		}
	} else {
		replaced = append(replaced, "work_start")
	}
	if record.WorkEnd != nil {
		if v, err := model.ParseClock(*record.WorkEnd); err == nil {
			res.WorkEnd = v
		} else {
			replaced = append(replaced, "work_end")
		}
	} else {
		replaced = append(replaced, "work_end")
	}
	if record.LateThreshold != nil && *record.LateThreshold >= 0 {
		res.LateThreshold = *record.LateThreshold
	} else {
		replaced = append(replaced, "late_threshold")
	}
	if record.Tolerance != nil && *record.Tolerance > 0 && *record.Tolerance <= 1 {
		res.Tolerance = *record.Tolerance
	} else {
		replaced = append(replaced, "recognition_tolerance")
	}
	if record.Location != nil {
		res.Location = *record.Location
	} else {
		replaced = append(replaced, "location")
	}
	return res, replaced
}

// Load читает сохранённое расписание. Отсутствующее, нечитаемое или неполное расписание
// дополняется значениями по умолчанию и сразу сохраняется
func (m *Schedule) Load() (model.Schedule, error) {
	record, err := m.store.LoadSchedule()
	switch {
	case err == nil:
	case errors.IsNotFound(err):
		m.log.Infof("расписание не найдено, используются значения по умолчанию")
		record = &model.ScheduleRecord{}
	case model.IsCorruptState(err):
		m.log.Errorf("%v, используются значения по умолчанию", err)
		record = &model.ScheduleRecord{}
	default:
		return model.Schedule{}, errors.Annotate(err, "ошибка чтения расписания")
	}

	schedule, replaced := merge(record)
	if len(replaced) != 0 {
		m.log.Infof("значения по умолчанию для %v", replaced)
		if err := m.store.SaveSchedule(schedule.Record()); err != nil {
			return model.Schedule{}, errors.Annotate(err, "ошибка сохранения расписания")
		}
	}

	m.mu.Lock()
	m.current = schedule
	m.mu.Unlock()
	return schedule, nil
}

// Save проверяет и сохраняет расписание. При ошибке сохранённое расписание не меняется
func (m *Schedule) Save(schedule model.Schedule) error {
	if err := m.validator.Validate(&schedule); err != nil {
		return errors.NewNotValid(err, "некорректное расписание")
	}
	if err := m.store.SaveSchedule(schedule.Record()); err != nil {
		return errors.Annotate(err, "ошибка сохранения расписания")
	}
	m.mu.Lock()
	m.current = schedule
	m.mu.Unlock()

	m.log.Infof("сохранено расписание: начало %s, допуск %d мин., порог %v, место %q",
		schedule.WorkStart.Format(), schedule.LateThreshold, schedule.Tolerance, schedule.Location)
	return nil
}

// Update разбирает введённые строки и сохраняет расписание. Пустое окончание дня
// не меняет текущее значение
func (m *Schedule) Update(form model.ScheduleForm) (model.Schedule, error) {
	if err := m.validator.Validate(&form); err != nil {
		return model.Schedule{}, errors.NewNotValid(err, "некорректные значения расписания")
	}
	schedule, err := form.Parse()
	if err != nil {
		return model.Schedule{}, errors.Trace(err)
	}
	if form.WorkEnd == "" {
		schedule.WorkEnd = m.Current().WorkEnd
	}
	if err := m.Save(schedule); err != nil {
		return model.Schedule{}, errors.Trace(err)
	}
	return schedule, nil
}

// Current действующее расписание
func (m *Schedule) Current() model.Schedule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}
