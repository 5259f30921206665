package utils

import (
	"io"
	"sync"
)

// FlushingWriter makes console output visible immediately by flushing buffered writers after every write.
type FlushingWriter struct {
	writer io.Writer
	mutex  sync.Mutex
}

// NewFlushingWriter wraps writer; a nil writer yields nil and an existing FlushingWriter is returned unchanged.
func NewFlushingWriter(writer io.Writer) io.Writer {
	if writer == nil {
		return nil
	}
	if _, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return writer
	}
	return &FlushingWriter{writer: writer}
}

// Write delegates to the underlying writer and flushes it when possible.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return 0, nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	bytesWritten, writeError := flushingWriter.writer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	return bytesWritten, flushingWriter.flushLocked()
}

// Sync flushes buffered data and syncs the underlying writer when it supports syncing.
// Log sinks call it through zapcore.WriteSyncer.
func (flushingWriter *FlushingWriter) Sync() error {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	if flushError := flushingWriter.flushLocked(); flushError != nil {
		return flushError
	}
	if syncableWriter, implementsSync := flushingWriter.writer.(interface{ Sync() error }); implementsSync {
		return syncableWriter.Sync()
	}
	return nil
}

func (flushingWriter *FlushingWriter) flushLocked() error {
	if flushableWriter, implementsFlush := flushingWriter.writer.(interface{ Flush() error }); implementsFlush {
		return flushableWriter.Flush()
	}
	return nil
}
