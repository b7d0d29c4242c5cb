package attendance

import (
	"context"
	"time"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/store"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// Coordinator обработка распознанных лиц: сопоставление с реестром, проверка повторной отметки,
// сохранение снимка и отметка в журнале. Инициируется через NewCoordinator
type Coordinator struct {
	ctx context.Context
	log *logrus.Entry

	registry controller.RegistryCtl
	matcher  controller.MatcherCtl
	schedule controller.ScheduleCtl
	ledger   controller.LedgerCtl
	evidence store.EvidenceStore

	now func() time.Time
}

// ConfigCoordinator конфигурация Coordinator
type ConfigCoordinator struct {
	Log *logrus.Logger

	Registry controller.RegistryCtl
	Matcher  controller.MatcherCtl
	Schedule controller.ScheduleCtl
	Ledger   controller.LedgerCtl
	// Хранилище снимков. Без него отметки сохраняются без снимков
	Evidence store.EvidenceStore

	// Источник времени для проб без времени съёмки
	Now func() time.Time
}

// NewCoordinator конструктор Coordinator
func NewCoordinator(ctx context.Context, config *ConfigCoordinator) (*Coordinator, error) {
	if config == nil {
		return nil, errors.New("не передана конфигурация")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if config.Registry == nil {
		return nil, errors.New("не передан реестр персон")
	}
	if config.Matcher == nil {
		return nil, errors.New("не передан модуль сопоставления")
	}
	if config.Schedule == nil {
		return nil, errors.New("не передано расписание")
	}
	if config.Ledger == nil {
		return nil, errors.New("не передан журнал посещений")
	}

	coordinator := Coordinator{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "attendance",
			"scope":  "controller",
		}),
		registry: config.Registry,
		matcher:  config.Matcher,
		schedule: config.Schedule,
		ledger:   config.Ledger,
		evidence: config.Evidence,
		now:      time.Now,
	}
	if config.Now != nil {
		coordinator.now = config.Now
	}
	return &coordinator, nil
}

var _ controller.AttendanceCtl = (*Coordinator)(nil)

// OnProbe обрабатывает дескриптор лица. Ошибка возвращается только при сбое сохранения отметки
func (m *Coordinator) OnProbe(ctx context.Context, probe model.Probe) (model.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return model.Outcome{}, errors.Trace(err)
	}
	markTime := probe.CapturedAt
	if markTime.IsZero() {
		markTime = m.now()
	}
	schedule := m.schedule.Current()

	match, ok := m.matcher.Match(probe.Descriptor, m.registry, schedule.Tolerance)
	if !ok {
		m.log.Debugf("камера %d: лицо не распознано", probe.CameraID)
		return model.Outcome{Kind: model.OutcomeUnknown}, nil
	}
	alreadyMarked := model.Outcome{
		Kind:       model.OutcomeAlreadyMarked,
		Name:       match.Ref.Name,
		ExternalID: match.Ref.ExternalID,
		Distance:   match.Distance,
	}
	if m.ledger.AlreadyMarked(match.Ref.Name, markTime) {
		m.log.Debugf("%s уже отмечен сегодня", match.Ref.Name)
		return alreadyMarked, nil
	}

	photoPath := ""
	if m.evidence != nil && len(probe.Frame) != 0 {
		path, err := m.evidence.SaveAttendance(markTime, match.Ref.Name, probe.Frame)
		if err != nil {
			m.log.Warnf("снимок %s не сохранён: %v", match.Ref.Name, err)
		} else {
			photoPath = path
		}
	}

	record, err := m.ledger.Commit(match.Ref.Name, match.Ref.ExternalID, markTime, photoPath, schedule)
	if err != nil {
		m.removeEvidence(photoPath)
		if errors.IsAlreadyExists(err) {
			m.log.Debugf("%s отмечен параллельной пробой", match.Ref.Name)
			return alreadyMarked, nil
		}
		return model.Outcome{}, errors.Trace(err)
	}

	return model.Outcome{
		Kind:       model.OutcomeMatched,
		Name:       record.Name,
		ExternalID: record.ExternalID,
		Status:     record.Status,
		Distance:   match.Distance,
		Record:     &record,
	}, nil
}

func (m *Coordinator) removeEvidence(path string) {
	if path == "" {
		return
	}
	if err := m.evidence.Remove(path); err != nil {
		m.log.Warnf("ошибка удаления снимка %s: %v", path, err)
	}
}

// Enroll регистрирует дескриптор персоны. Снимок, по которому получен дескриптор,
// сохраняется в хранилище снимков, если передан
func (m *Coordinator) Enroll(name, externalID string, descriptor model.Descriptor, image []byte) (model.IdentityRef, bool, error) {
	ref, created, err := m.registry.Add(name, externalID, descriptor)
	if err != nil {
		return model.IdentityRef{}, false, errors.Trace(err)
	}
	if m.evidence != nil && len(image) != 0 {
		if _, err := m.evidence.SaveEnrollment(m.now(), ref.Name, image); err != nil {
			m.log.Warnf("снимок регистрации %s не сохранён: %v", ref.Name, err)
		}
	}
	return ref, created, nil
}
