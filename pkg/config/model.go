package config

import "time"

type (

	// Config конфигурация программы
	Config struct {

		// Описание логирования
		Log struct {

			// Путь к файлу лога
			Path string

			// Имя файла логирования
			Filename string `required:"true" default:"attendance.log"`

			// Уровень логирования
			Level string `required:"true" default:"warning"`

			// Выводить лог только на консоль
			Console bool `default:"false"`
		}

		// Описываем хранилище данных
		Db struct {

			// Тип хранилища: file (файлы совместимого формата) или sqlite
			Type string `default:"file"`

			// Путь к расположению данных
			Path string `default:"."`

			// Имя файла базы данных (для sqlite)
			Filename string `default:"attendance.sqlite"`
		}

		// Файлы и директории файлового хранилища (относительно Db.Path)
		Storage struct {

			// Реестр дескрипторов лиц
			FacesFile string `default:"face_encodings.gob"`

			// Журнал посещений
			LedgerFile string `default:"attendance.csv"`

			// Рабочее расписание
			ScheduleFile string `default:"config.json"`

			// Снимки-подтверждения отметок
			EvidenceDir string `default:"attendance_photos"`

			// Снимки, по которым регистрировались персоны
			FacesDir string `default:"registered_faces"`

			// Выгрузки отчётов
			ReportDir string `default:"reports"`
		}

		// Описание камер
		Camera struct {

			// Таймаут переподключения к камере (в секундах)
			ReconnectTimeout uint `default:"5"`

			// Таймаут скачивания кадра (в секундах)
			DownloadTimeout uint `default:"2"`

			// Адреса камер
			Info []struct {

				// Идентификатор камеры
				ID uint `required:"true"`

				// Адрес WebSocket канала камеры, например ws://127.0.0.1:8000/feed
				Address string `required:"true" default:""`

				// Имя камеры
				Name string `required:"true" default:""`

				// Описание камеры
				Description string
			}
		}

		// Кодировщик лиц
		Encoder struct {

			// Адрес WebSocket канала, например ws://127.0.0.1:8001/encode
			Address string

			// Таймаут ожидания ответа (в миллисекундах)
			TimeOut time.Duration `default:"3000"`
		}

		// Сопоставление лиц
		Match struct {

			// Стратегия: first (первое совпадение), nearest (ближайшее), hnsw (индекс)
			Strategy string `default:"first"`

			// Метрика: euclidean или cosine
			Metric string `default:"euclidean"`
		}

		// Обслуживание WEB-сервера
		Http struct {

			// Порт WEB-сервера
			Port uint `required:"true" default:"8080"`

			// Корень директории со статическим контентом
			AssetsDir string `default:"assets"`
		}
	}
)
