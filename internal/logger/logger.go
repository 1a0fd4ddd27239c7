package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger writes levelled, categorised log lines to stdout (colored) and,
// when BOX_OFFICE_LOG_FILE is set, mirrors them uncolored to that file.
type Logger struct {
	mu   sync.Mutex
	file *os.File

	info    *color.Color
	warn    *color.Color
	errc    *color.Color
	debug   *color.Color
	section *color.Color
}

func NewLogger() *Logger {
	l := &Logger{
		info:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		errc:    color.New(color.FgRed, color.Bold),
		debug:   color.New(color.FgCyan),
		section: color.New(color.FgMagenta, color.Bold),
	}

	if path := os.Getenv("BOX_OFFICE_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			l.file = f
		}
	}

	return l
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) write(level string, c *color.Color, category, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("[%s] %-5s [%s] %s", ts, level, category, msg)

	c.Fprintln(os.Stdout, line)

	if l.file != nil {
		fmt.Fprintln(l.file, line)
	}
}

func (l *Logger) Info(category, msg string)  { l.write("INFO", l.info, category, msg) }
func (l *Logger) Warn(category, msg string)  { l.write("WARN", l.warn, category, msg) }
func (l *Logger) Error(category, msg string) { l.write("ERROR", l.errc, category, msg) }
func (l *Logger) Debug(category, msg string) { l.write("DEBUG", l.debug, category, msg) }

func (l *Logger) Fatal(category, msg string) {
	l.write("FATAL", l.errc, category, msg)
	l.Close()
	os.Exit(1)
}

// LogPayment logs a payment lifecycle step: an action tag, the transaction or
// payment identifier, and a human message.
func (l *Logger) LogPayment(action, id, msg string) {
	l.write("INFO", l.section, "PAYMENT", fmt.Sprintf("%s [%s] %s", action, id, msg))
}

// LogBooking logs a booking lifecycle step.
func (l *Logger) LogBooking(action, id, msg string) {
	l.write("INFO", l.section, "BOOKING", fmt.Sprintf("%s [%s] %s", action, id, msg))
}

func (l *Logger) LogDatabase(action, target, msg string) {
	l.write("INFO", l.debug, "DATABASE", fmt.Sprintf("%s [%s] %s", action, target, msg))
}

func (l *Logger) LogKafka(action, topic, msg string) {
	l.write("INFO", l.debug, "KAFKA", fmt.Sprintf("%s [%s] %s", action, topic, msg))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.write("INFO", l.info, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogProcess(stage, msg string) {
	l.write("INFO", l.section, stage, msg)
}

func (l *Logger) LogSecurity(action, msg string) {
	l.write("WARN", l.warn, "SECURITY", fmt.Sprintf("%s %s", action, msg))
}
