package config

import (
    "os"

    "github.com/op/go-logging"
)

// InitLogger installs a stdout backend for go-logging at the given level
// name (DEBUG, INFO, WARNING, ERROR...).  An unknown level is an error.
func InitLogger(level string) error {
    base := logging.NewLogBackend(os.Stdout, "", 0)
    format := logging.MustStringFormatter(
        `%{time:2006-01-02 15:04:05} %{level:.5s} [%{module}] %{message}`,
    )
    leveled := logging.AddModuleLevel(logging.NewBackendFormatter(base, format))
    code, err := logging.LogLevel(level)
    if err != nil {
        return err
    }
    leveled.SetLevel(code, "")
    logging.SetBackend(leveled)
    return nil
}
