// Package logger provides structured logging for queuekit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers carrying run and producer fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.WithComponent("producer")
//	log.Info("item pushed", logger.Fields(logger.FieldSource, "abc", logger.FieldSeq, 2))
package logger
