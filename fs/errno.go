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

package fs

import (
	"syscall"

	"github.com/torrentfuse/torrentfuse/internal/apierr"
)

// toErrno is the single point where the error taxonomy (§7) is reduced to a
// kernel errno at the FUSE reply boundary. Every other component only ever
// returns *apierr.Error.
func toErrno(err error) error {
	if err == nil {
		return nil
	}

	switch apierr.KindOf(err) {
	case apierr.KindNotFound:
		return syscall.ENOENT
	case apierr.KindReadOnly:
		return syscall.EROFS
	case apierr.KindUnauthorized:
		return syscall.EACCES
	case apierr.KindInvalidArgument:
		return syscall.EINVAL
	case apierr.KindTypeMismatch:
		return syscall.EINVAL
	case apierr.KindNotReady:
		return syscall.EAGAIN
	case apierr.KindNetworkError:
		return syscall.ENOTCONN
	case apierr.KindIoError:
		return syscall.EIO
	case apierr.KindOutOfResources:
		return syscall.EBUSY
	case apierr.KindBadHandle:
		return syscall.EBADF
	default:
		return syscall.EIO
	}
}
