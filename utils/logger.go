package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

var (
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	debugColor = color.New(color.FgHiBlack)

	debugEnabled = os.Getenv("LOG_DEBUG") == "true"
)

func stamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// LogInfo prints an informational line in cyan.
func LogInfo(format string, v ...interface{}) {
	infoColor.Fprintf(os.Stdout, "[%s] [INFO] %s\n", stamp(), fmt.Sprintf(format, v...))
}

// LogWarn prints a warning in yellow.
func LogWarn(format string, v ...interface{}) {
	warnColor.Fprintf(os.Stdout, "[%s] [WARN] %s\n", stamp(), fmt.Sprintf(format, v...))
}

// LogError prints an error in red on stderr.
func LogError(format string, v ...interface{}) {
	errorColor.Fprintf(os.Stderr, "[%s] [ERROR] %s\n", stamp(), fmt.Sprintf(format, v...))
}

// LogDebug prints only when LOG_DEBUG=true.
func LogDebug(format string, v ...interface{}) {
	if !debugEnabled {
		return
	}
	debugColor.Fprintf(os.Stdout, "[%s] [DEBUG] %s\n", stamp(), fmt.Sprintf(format, v...))
}

// LogRequest prints one access log line with status and duration.
func LogRequest(method, path string, status int, duration time.Duration) {
	c := infoColor
	switch {
	case status >= 500:
		c = errorColor
	case status >= 400:
		c = warnColor
	}
	c.Fprintf(os.Stdout, "[%s] %-6s %-50s [%d] (%s)\n", stamp(), method, path, status, duration.Round(time.Microsecond))
}
