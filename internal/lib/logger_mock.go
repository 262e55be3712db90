package lib

import "github.com/hale-labs/hale-oracle/internal/interfaces"

// LoggerMock discards everything, used where log output is irrelevant to the test
type LoggerMock struct{}

func (l *LoggerMock) Debug(args ...interface{}) {}
func (l *LoggerMock) Info(args ...interface{})  {}
func (l *LoggerMock) Warn(args ...interface{})  {}
func (l *LoggerMock) Error(args ...interface{}) {}

func (l *LoggerMock) Debugf(template string, args ...interface{}) {}
func (l *LoggerMock) Infof(template string, args ...interface{})  {}
func (l *LoggerMock) Warnf(template string, args ...interface{})  {}
func (l *LoggerMock) Errorf(template string, args ...interface{}) {}

func (l *LoggerMock) Debugw(msg string, keysAndValues ...interface{}) {}
func (l *LoggerMock) Infow(msg string, keysAndValues ...interface{})  {}
func (l *LoggerMock) Warnw(msg string, keysAndValues ...interface{})  {}
func (l *LoggerMock) Errorw(msg string, keysAndValues ...interface{}) {}

func (l *LoggerMock) Named(name string) interfaces.ILogger        { return l }
func (l *LoggerMock) With(args ...interface{}) interfaces.ILogger { return l }
func (l *LoggerMock) Sync() error                                 { return nil }
