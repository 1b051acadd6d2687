// Package common provides the configuration structures and the logging backend
// shared by the dDispatch command line tools.
//
// Key Components:
//
//   - SendConfig: parameters of a one-shot send (destination, payloads, file
//     range, sender policies and the dispatcher engine configuration). It
//     converts itself into a dispatcher.SenderInfo.
//
//   - EchoConfig: parameters of the echo server command, convertible into an
//     echo.Config.
//
//   - Logger: zerolog backed implementation of the dragonboat logger.ILogger
//     interface. InitLoggers installs it as the global factory so every
//     package logger obtained through logger.GetLogger writes structured output.
//     Set DDISPATCH_LOG_FORMAT=json to switch from console to JSON output.
package common
