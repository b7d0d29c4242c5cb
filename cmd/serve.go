package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cameraCtlMod "github.com/kirsrus/attendance/server/controller/camera"
	"github.com/kirsrus/attendance/server/controller/manager"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/service"
	cameraSvcMod "github.com/kirsrus/attendance/server/service/camera"
	webSvcMod "github.com/kirsrus/attendance/server/service/web"

	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запуск сервера: опрос камер, распознавание и WEB-интерфейс",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Завершение работы по сигналу
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// region Хранилища и ядро учёта

	c, err := openCore(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	encoder, err := newEncoder(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	// endregion
	// region Инициализация камер
	// Формирование списка опрашиваемых камер и запуск их мониторинга

	cameras := make([]service.CameraSvc, 0)
	camerasInfo := make([]model.CameraInfo, 0)
	for _, i := range cfg.Camera.Info {
		cameraInfo := model.CameraInfo{
			ID:          i.ID,
			URL:         i.Address,
			Name:        i.Name,
			Description: i.Description,
		}
		camera, err := cameraSvcMod.NewWebsocket(ctx, &cameraSvcMod.ConfigWebsocket{
			Log:              log,
			CameraInfo:       cameraInfo,
			ReconnectTimeout: cfg.ReconnectTimeout(),
			DownloadTimeout:  cfg.DownloadTimeout(),
		})
		if err != nil {
			return errors.Trace(err)
		}
		cameras = append(cameras, camera)
		camerasInfo = append(camerasInfo, cameraInfo)
	}

	camerasAll, err := cameraCtlMod.NewCamera(ctx, cameras, &cameraCtlMod.ConfigCamera{
		Log: log,
	})
	if err != nil {
		return errors.Trace(err)
	}

	// endregion
	// region Сервис WEB

	webConfig := &webSvcMod.ConfigWeb{
		Log:        log,
		Registry:   c.registry,
		Schedule:   c.schedule,
		Ledger:     c.ledger,
		Attendance: c.coordinator,
		Evidence:   c.evidence,
		Cameras:    camerasInfo,
		AssetsDir:  cfg.Http.AssetsDir,
		ReportDir:  cfg.DataPath(cfg.Storage.ReportDir),
	}
	if encoder != nil {
		webConfig.Encoder = encoder
	}
	webSvc, err := webSvcMod.NewWeb(ctx, webConfig)
	if err != nil {
		return errors.Trace(err)
	}

	webSvc.Static("/")
	webSvc.Api("/api")
	webSvc.Events("/events")
	webSvc.Photo("/photo")

	// endregion
	// region Менеджер управления всеми

	if encoder == nil {
		// Без кодировщика кадры с камер не распознаются, работает только WEB-интерфейс
		log.Warn("не задан адрес кодировщика, кадры с камер не обрабатываются")
		return errors.Trace(webSvc.Start(cfg.Http.Port))
	}

	managerCtl, err := manager.NewManager(ctx, &manager.ConfigManager{
		Log:            log,
		CameraCtl:      camerasAll,
		AttendanceCtl:  c.coordinator,
		WebSvc:         webSvc,
		EncoderSvc:     encoder,
		RequestTimeout: cfg.Encoder.TimeOut,
		WebPort:        cfg.Http.Port,
	})
	if err != nil {
		return errors.Trace(err)
	}

	// endregion

	err = managerCtl.Serve()
	if ctx.Err() != nil {
		log.Info("получена команда на завершение работы программы")
		return nil
	}
	return errors.Trace(err)
}
