package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultMaxLogFileMB is the size at which a log file is rotated.
const DefaultMaxLogFileMB = 100

// FileAppender is a ConsoleAppender writing to a file that is rotated once it grows past its
// maximum size. Close must be called once logging is done.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender returns an appender writing to path. Rotated files are compressed and the
// three most recent are kept.
func NewFileAppender(path string, maxSizeMB int) *FileAppender {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxLogFileMB
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Close closes the current log file.
func (fa *FileAppender) Close() error {
	return fa.file.Close()
}
