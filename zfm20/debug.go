// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build upm_zfm20_debug
// +build upm_zfm20_debug

package zfm20

import "log"

// logf is enabled when the build tag upm_zfm20_debug is specified.
func logf(fmt string, v ...interface{}) {
	log.Printf(fmt, v...)
}
