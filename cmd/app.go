package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/controller/attendance"
	"github.com/kirsrus/attendance/server/controller/ledger"
	"github.com/kirsrus/attendance/server/controller/matcher"
	"github.com/kirsrus/attendance/server/controller/registry"
	"github.com/kirsrus/attendance/server/controller/schedule"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/service"
	encoderSvcMod "github.com/kirsrus/attendance/server/service/encoder"
	"github.com/kirsrus/attendance/server/store"
	dbStoreMod "github.com/kirsrus/attendance/server/store/db"
	fileStoreMod "github.com/kirsrus/attendance/server/store/file"

	"github.com/juju/errors"
)

// Ядро учёта посещений, общее для всех команд
type core struct {
	store       store.Store
	evidence    *fileStoreMod.Evidence
	registry    *registry.Registry
	schedule    *schedule.Schedule
	ledger      *ledger.Ledger
	matcher     controller.MatcherCtl
	coordinator *attendance.Coordinator

	close func()
}

// openStore хранилище реестра, журнала и расписания по типу из конфигурации
func openStore(ctx context.Context) (store.Store, func(), error) {
	switch strings.ToLower(cfg.Db.Type) {
	case "", "file":
		files, err := fileStoreMod.NewFiles(ctx, &fileStoreMod.ConfigFiles{
			Log:          log,
			FacesFile:    cfg.DataPath(cfg.Storage.FacesFile),
			LedgerFile:   cfg.DataPath(cfg.Storage.LedgerFile),
			ScheduleFile: cfg.DataPath(cfg.Storage.ScheduleFile),
		})
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return files, func() {}, nil
	case "sqlite":
		dbFile := cfg.DataPath(cfg.Db.Filename)
		if err := os.MkdirAll(filepath.Dir(dbFile), os.ModePerm); err != nil {
			return nil, nil, errors.Annotatef(err, "ошибка создания директории БД")
		}
		db, err := dbStoreMod.NewDb(ctx, &dbStoreMod.ConfigDb{
			Log:    log,
			DbFile: dbFile,
		})
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				log.Warnf("ошибка закрытия БД: %v", err)
			}
		}, nil
	}
	return nil, nil, errors.NotValidf("тип хранилища %q", cfg.Db.Type)
}

// newMatcher сопоставление по стратегии и метрике из конфигурации
func newMatcher(ctx context.Context) (controller.MatcherCtl, error) {
	metric, err := matcher.ParseMetric(cfg.Match.Metric)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Match.Strategy), "hnsw") {
		indexed, err := matcher.NewIndexed(ctx, &matcher.ConfigIndexed{
			Log:    log,
			Metric: metric,
		})
		return indexed, errors.Trace(err)
	}
	strategy, err := matcher.ParseStrategy(cfg.Match.Strategy)
	if err != nil {
		return nil, errors.Trace(err)
	}
	exact, err := matcher.NewMatcher(ctx, &matcher.ConfigMatcher{
		Log:      log,
		Metric:   metric,
		Strategy: strategy,
	})
	return exact, errors.Trace(err)
}

// openCore инициализация хранилищ и контроллеров
func openCore(ctx context.Context) (*core, error) {
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c := core{store: st, close: closeStore}
	ok := false
	defer func() {
		if !ok {
			closeStore()
		}
	}()

	c.evidence, err = fileStoreMod.NewEvidence(ctx, &fileStoreMod.ConfigEvidence{
		Log:         log,
		EvidenceDir: cfg.DataPath(cfg.Storage.EvidenceDir),
		FacesDir:    cfg.DataPath(cfg.Storage.FacesDir),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if c.registry, err = registry.NewRegistry(ctx, st, &registry.ConfigRegistry{Log: log}); err != nil {
		return nil, errors.Trace(err)
	}
	if c.schedule, err = schedule.NewSchedule(ctx, st, &schedule.ConfigSchedule{Log: log}); err != nil {
		return nil, errors.Trace(err)
	}
	if c.ledger, err = ledger.NewLedger(ctx, st, &ledger.ConfigLedger{Log: log}); err != nil {
		return nil, errors.Trace(err)
	}
	if c.matcher, err = newMatcher(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	c.coordinator, err = attendance.NewCoordinator(ctx, &attendance.ConfigCoordinator{
		Log:      log,
		Registry: c.registry,
		Matcher:  c.matcher,
		Schedule: c.schedule,
		Ledger:   c.ledger,
		Evidence: c.evidence,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	ok = true
	return &c, nil
}

// newEncoder подключение к кодировщику лиц. Без адреса в конфигурации возвращается nil
func newEncoder(ctx context.Context) (service.EncoderSvc, error) {
	if strings.TrimSpace(cfg.Encoder.Address) == "" {
		return nil, nil
	}
	encoder, err := encoderSvcMod.NewEncoder(ctx, &encoderSvcMod.ConfigEncoder{
		Log:            log,
		EncoderUrl:     cfg.Encoder.Address,
		RequestTimeout: cfg.Encoder.TimeOut,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return encoder, nil
}

// encodeFirst дескриптор первого лица на изображении
func encodeFirst(ctx context.Context, encoder service.EncoderSvc, image []byte) (model.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Encoder.TimeOut+time.Second)
	defer cancel()
	faces, err := encoder.Encode(ctx, image)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(faces) == 0 {
		return nil, errors.NotValidf("на изображении не найдено лиц")
	}
	return faces[0].Descriptor, nil
}
