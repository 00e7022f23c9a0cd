package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	log  zerolog.Logger
	once sync.Once
)

// Options configures the global logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output io.Writer
}

// Init configures the global logger. Calling it again replaces the logger.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	log = zerolog.New(out).Level(level).With().Timestamp().Logger()
	once.Do(func() {})
}

func get() *zerolog.Logger {
	once.Do(func() {
		log = zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	})
	return &log
}

func Debug(msg string, args ...any) {
	write(get().Debug(), msg, args)
}

func Info(msg string, args ...any) {
	write(get().Info(), msg, args)
}

func Warn(msg string, args ...any) {
	write(get().Warn(), msg, args)
}

func Error(msg string, args ...any) {
	write(get().Error(), msg, args)
}

// write attaches args as key/value pairs. A dangling value without a key is
// logged under "error" when it is an error and "arg" otherwise.
func write(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			switch v := args[i].(type) {
			case error:
				ev = ev.AnErr("error", v)
			default:
				ev = ev.Interface("arg", v)
			}
			continue
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Str(key, v.String())
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
