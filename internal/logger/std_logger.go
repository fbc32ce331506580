// Copyright 2023 Google Inc. All Rights Reserved.
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

package logger

import (
	"log"
)

// errorLogWriter adapts a Logger to io.Writer so it can back a *log.Logger,
// which is what jacobsa/fuse's MountConfig.ErrorLogger expects.
type errorLogWriter struct {
	log    *Logger
	prefix string
}

func (w errorLogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	w.log.Error(msg, "component", w.prefix)
	return len(p), nil
}

// NewStdLogger returns a *log.Logger that forwards every line written to it
// as an ERROR entry on l, tagged with component. FUSE library internals
// (jacobsa/fuse) only know how to log through *log.Logger.
func NewStdLogger(l *Logger, component string) *log.Logger {
	return log.New(errorLogWriter{log: l, prefix: component}, "", 0)
}
