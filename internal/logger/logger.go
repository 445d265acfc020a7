// Package logger configures the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const timeFormat = "02-01-2006 15:04:05.000"

var once sync.Once

// Init sets the global level and installs a console writer tagged with the
// application name. Later calls only change the level.
func Init(appName, level string) error {
	return InitWriter(os.Stderr, appName, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(out io.Writer, appName, level string) error {
	if appName == "" {
		return fmt.Errorf("logger: app name is empty")
	}
	if err := SetLevel(level); err != nil {
		return err
	}
	once.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			if i := strings.LastIndexByte(file, '/'); i >= 0 {
				file = file[i+1:]
			}
			return file + ":" + strconv.Itoa(line)
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    out != os.Stderr,
			TimeFormat: timeFormat,
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
			FieldsExclude: []string{"app"},
			PartsOrder: []string{
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			},
		}).With().Timestamp().Caller().Str("app", appName).Logger()
	})
	log.Debug().Str("level", zerolog.GlobalLevel().String()).Msg("logger initialized")
	return nil
}

// SetLevel accepts zerolog level names in any case. Empty means warn.
func SetLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
