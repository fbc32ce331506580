// Copyright 2025 Google LLC
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

//go:build linux

package fs

import "golang.org/x/sys/unix"

// errNoSuchAttr is the errno for an unrecognized extended attribute name:
// ENODATA on Linux, ENOATTR on BSD-derivatives (see errno_other.go).
const errNoSuchAttr = unix.ENODATA
