package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const (
	LogFieldsContextKey = contextKey("log_fields")

	ProjectDirectoryName = "blihweb"
	ModuleName           = "github.com/blihweb/blihweb"

	UnknownUser = "(unknown user)"
)

// log_fields keys
const (
	// UserFieldKey login found in the signed envelope (string)
	UserFieldKey = "user"
	// RepositoryFieldKey repository name (string)
	RepositoryFieldKey = "repository"
	// SSHKeyFieldKey ssh key name (string)
	SSHKeyFieldKey = "sshkey"
	// OperationFieldKey proxy operation (string, ex: repo/list)
	OperationFieldKey = "operation"
	// PathFieldKey path / request URI (string)
	PathFieldKey = "path"
	// MethodFieldKey request's method (string)
	MethodFieldKey = "method"
	// HostFieldKey request's host (string)
	HostFieldKey = "host"
	// StatusFieldKey response status or "error" (string)
	StatusFieldKey = "status"
	// RequestIDFieldKey request ID (string) based on the request ID found on context
	RequestIDFieldKey = "request_id"
	// ServiceNameFieldKey service name (string, ex: proxy)
	ServiceNameFieldKey = "service_name"
	// LogAudit kind of information to audit (bool)
	LogAudit = "log_audit"
)

var (
	formatterInitOnce sync.Once
	defaultLogger     = logrus.New()

	closersMu sync.Mutex
	closers   []io.Closer
)

func Level() string {
	return defaultLogger.GetLevel().String()
}

type Fields map[string]interface{}

// logCallerTrimmer is used to trim the caller paths to be relative to the project root
func logCallerTrimmer(frame *runtime.Frame) (function string, file string) {
	indexOfModule := strings.Index(strings.ToLower(frame.File), ProjectDirectoryName)
	if indexOfModule != -1 {
		file = frame.File[indexOfModule+len(ProjectDirectoryName):]
		if slash := strings.IndexRune(file, '/'); slash != -1 {
			file = file[slash:]
		}
	} else {
		file = frame.File
	}
	file = fmt.Sprintf("%s:%d", strings.TrimPrefix(file, string(os.PathSeparator)), frame.Line)
	function = strings.TrimPrefix(frame.Function, ModuleName+"/")
	return
}

func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "trace":
		defaultLogger.SetLevel(logrus.TraceLevel)
	case "debug":
		defaultLogger.SetLevel(logrus.DebugLevel)
	case "info":
		defaultLogger.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		defaultLogger.SetLevel(logrus.WarnLevel)
	case "error":
		defaultLogger.SetLevel(logrus.ErrorLevel)
	case "panic":
		defaultLogger.SetLevel(logrus.PanicLevel)
	case "null", "none":
		defaultLogger.SetLevel(logrus.PanicLevel)
		defaultLogger.SetOutput(io.Discard)
	}
}

// SetOutputs directs log output. "-" is stdout, "=" is stderr, anything else is a
// file path rotated by lumberjack. An empty list keeps the current output.
func SetOutputs(outputs []string, fileMaxSizeMB, filesKeep int) error {
	var writers []io.Writer
	var fileClosers []io.Closer
	for _, output := range outputs {
		switch output {
		case "":
			continue
		case "-":
			writers = append(writers, os.Stdout)
		case "=":
			writers = append(writers, os.Stderr)
		default:
			if _, err := os.Stat(output); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("log output %s: %w", output, err)
			}
			w := &lumberjack.Logger{
				Filename:   output,
				MaxSize:    fileMaxSizeMB,
				MaxBackups: filesKeep,
			}
			writers = append(writers, w)
			fileClosers = append(fileClosers, w)
		}
	}
	switch {
	case len(writers) == 1:
		defaultLogger.SetOutput(writers[0])
	case len(writers) > 1:
		defaultLogger.SetOutput(io.MultiWriter(writers...))
	default:
		return nil
	}
	closersMu.Lock()
	closers = append(closers, fileClosers...)
	closersMu.Unlock()
	return nil
}

// CloseWriters closes file outputs opened by SetOutputs.
func CloseWriters() error {
	closersMu.Lock()
	defer closersMu.Unlock()
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closers = nil
	return errors.Join(errs...)
}

func SetOutputFormat(format string) {
	var formatter logrus.Formatter
	switch strings.ToLower(format) {
	case "text":
		formatter = &logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			QuoteEmptyFields:       true,
			CallerPrettyfier:       logCallerTrimmer,
		}
	case "json":
		formatter = &logrus.JSONFormatter{
			CallerPrettyfier: logCallerTrimmer,
			PrettyPrint:      false,
		}
	default:
		return // no known formatter found
	}

	// wrap it with our caller formatter
	defaultLogger.SetFormatter(logrusCallerFormatter{formatter})
}

type Logger interface {
	WithContext(ctx context.Context) Logger
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
	Log(level logrus.Level, args ...interface{})
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	IsTracing() bool
	IsDebugging() bool
}

type logrusEntryWrapper struct {
	e *logrus.Entry
}

func (l *logrusEntryWrapper) WithContext(ctx context.Context) Logger {
	return addFromContext(
		&logrusEntryWrapper{l.e.WithContext(ctx)},
		ctx,
	)
}

func (l *logrusEntryWrapper) WithField(key string, value interface{}) Logger {
	return &logrusEntryWrapper{l.e.WithField(key, value)}
}

func (l *logrusEntryWrapper) WithFields(fields Fields) Logger {
	return &logrusEntryWrapper{l.e.WithFields(logrus.Fields(fields))}
}

func (l *logrusEntryWrapper) WithError(err error) Logger {
	return &logrusEntryWrapper{l.e.WithError(err)}
}

func (l *logrusEntryWrapper) Trace(args ...interface{}) {
	l.e.Trace(args...)
}

func (l *logrusEntryWrapper) Debug(args ...interface{}) {
	l.e.Debug(args...)
}

func (l *logrusEntryWrapper) Info(args ...interface{}) {
	l.e.Info(args...)
}

func (l *logrusEntryWrapper) Warn(args ...interface{}) {
	l.e.Warn(args...)
}

func (l *logrusEntryWrapper) Error(args ...interface{}) {
	l.e.Error(args...)
}

func (l *logrusEntryWrapper) Fatal(args ...interface{}) {
	l.e.Fatal(args...)
}

func (l *logrusEntryWrapper) Log(level logrus.Level, args ...interface{}) {
	l.e.Log(level, args...)
}

func (l *logrusEntryWrapper) Tracef(format string, args ...interface{}) {
	l.e.Tracef(format, args...)
}

func (l *logrusEntryWrapper) Debugf(format string, args ...interface{}) {
	l.e.Debugf(format, args...)
}

func (l *logrusEntryWrapper) Infof(format string, args ...interface{}) {
	l.e.Infof(format, args...)
}

func (l *logrusEntryWrapper) Warnf(format string, args ...interface{}) {
	l.e.Warnf(format, args...)
}

func (l *logrusEntryWrapper) Errorf(format string, args ...interface{}) {
	l.e.Errorf(format, args...)
}

func (l *logrusEntryWrapper) Fatalf(format string, args ...interface{}) {
	l.e.Fatalf(format, args...)
}

func (*logrusEntryWrapper) IsTracing() bool {
	return defaultLogger.IsLevelEnabled(logrus.TraceLevel)
}

func (*logrusEntryWrapper) IsDebugging() bool {
	return defaultLogger.IsLevelEnabled(logrus.DebugLevel)
}

type logrusCallerFormatter struct {
	f logrus.Formatter
}

func (lf logrusCallerFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Caller = getCaller()
	return lf.f.Format(e)
}

const maximumCallerDepth = 25

// getCaller returns the first frame outside logrus and this package.
func getCaller() *runtime.Frame {
	pcs := make([]uintptr, maximumCallerDepth)
	depth := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:depth])
	for f, again := frames.Next(); again; f, again = frames.Next() {
		if strings.Contains(f.Function, "sirupsen/logrus") ||
			strings.HasPrefix(f.Function, ModuleName+"/pkg/logging.") {
			continue
		}
		frame := f
		return &frame
	}
	return nil
}

func Default() Logger {
	// wrap formatter with our own formatter that overrides caller
	formatterInitOnce.Do(func() {
		defaultLogger.SetReportCaller(true)
		defaultLogger.Formatter = logrusCallerFormatter{defaultLogger.Formatter}
	})
	return &logrusEntryWrapper{
		e: logrus.NewEntry(defaultLogger),
	}
}

// ContextUnavailable returns the default logger, for call sites that have no context to log with.
func ContextUnavailable() Logger {
	return Default()
}

// GetFieldsFromContext returns the log fields stored on ctx, nil when none.
func GetFieldsFromContext(ctx context.Context) Fields {
	fields, _ := ctx.Value(LogFieldsContextKey).(Fields)
	return fields
}

func addFromContext(log Logger, ctx context.Context) Logger {
	fields := ctx.Value(LogFieldsContextKey)
	if fields == nil {
		return log
	}
	loggerFields := fields.(Fields)
	return log.WithFields(loggerFields)
}

func FromContext(ctx context.Context) Logger {
	return addFromContext(Default(), ctx)
}

// AddFields returns a context carrying fields merged over any fields already on ctx.
// The fields map found on ctx is not modified.
func AddFields(ctx context.Context, fields Fields) context.Context {
	ctxFields := ctx.Value(LogFieldsContextKey)
	loggerFields := Fields{}
	if ctxFields != nil {
		for k, v := range ctxFields.(Fields) {
			loggerFields[k] = v
		}
	}
	for k, v := range fields {
		loggerFields[k] = v
	}
	return context.WithValue(ctx, LogFieldsContextKey, loggerFields)
}
