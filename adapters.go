package magicdb

import (
	"github.com/raniellyferreira/magicdb/fanout"
	"github.com/raniellyferreira/magicdb/server"
)

// loggerAdapter adapts our Logger interface to the key/value loggers
// of the server and fanout packages
type loggerAdapter struct {
	logger Logger
}

var (
	_ server.Logger = (*loggerAdapter)(nil)
	_ fanout.Logger = (*loggerAdapter)(nil)
)

func (la *loggerAdapter) Debug(msg string, fields ...interface{}) {
	la.logger.Debug(msg, convertFields(fields...)...)
}

func (la *loggerAdapter) Info(msg string, fields ...interface{}) {
	la.logger.Info(msg, convertFields(fields...)...)
}

func (la *loggerAdapter) Error(msg string, fields ...interface{}) {
	la.logger.Error(msg, convertFields(fields...)...)
}

func convertFields(fields ...interface{}) []Field {
	result := make([]Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: fields[i+1],
			})
		}
	}
	return result
}
