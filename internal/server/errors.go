// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package server

import "errors"

var (
	ErrNoAddress  = errors.New("server address is not configured")
	ErrNilHandler = errors.New("server handler is nil")
)
