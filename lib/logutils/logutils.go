// Copyright (c) 2016-2024 Tigera, Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutils

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ConfigureFormatter sets the logrus formatter used by all our components.  The component name
// is included in every log line so that logs from several processes can be interleaved.
func ConfigureFormatter(componentName string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		DisableQuote:    true,
	})
	log.AddHook(componentHook{component: componentName})
}

// ConfigureLogging parses the given level (case insensitive) and applies it.  An unparsable level
// falls back to Info with a warning rather than failing start-of-day.
func ConfigureLogging(level string) {
	log.SetOutput(os.Stderr)
	logLevel, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.WithError(err).WithField("level", level).Warn("Unknown log level, defaulting to Info.")
		logLevel = log.InfoLevel
	}
	log.SetLevel(logLevel)
}

type componentHook struct {
	component string
}

func (h componentHook) Levels() []log.Level {
	return log.AllLevels
}

func (h componentHook) Fire(entry *log.Entry) error {
	if _, ok := entry.Data["component"]; !ok {
		entry.Data["component"] = h.component
	}
	return nil
}
