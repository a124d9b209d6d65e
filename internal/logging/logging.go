// ABOUTME: Log setup shared by both programs
// ABOUTME: Level from config, output to the log file and, without the TUI, stdout
package logging

import (
	"io"
	"log"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/internal/config"
)

// Setup configures the standard logrus logger. With the TUI on, logs only
// go to the file so they do not tear the display. The returned function
// closes the file.
func Setup(conf config.Common) (func(), error) {
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logrus.SetLevel(level)

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if conf.LogFile != "" {
		path, err := homedir.Expand(conf.LogFile)
		if err != nil {
			return nil, errors.Wrap(err, "log file")
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, errors.Wrap(err, "error opening log file")
		}
		closeFn = func() { _ = f.Close() }
		if conf.NoTUI {
			out = io.MultiWriter(os.Stdout, f)
		} else {
			out = f
		}
	} else if !conf.NoTUI {
		out = io.Discard
	}
	logrus.SetOutput(out)

	// Libraries that use the standard logger end up in the same place.
	log.SetFlags(0)
	log.SetOutput(logrus.StandardLogger().WriterLevel(logrus.DebugLevel))
	return closeFn, nil
}
