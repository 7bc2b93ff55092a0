// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

// ErrNotSealed is returned by Init when composition has not finished.
var ErrNotSealed = errors.New("service registry is not sealed")
