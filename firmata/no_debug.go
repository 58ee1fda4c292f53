// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !upm_firmata_debug
// +build !upm_firmata_debug

package firmata

// logf is disabled when the build tag upm_firmata_debug is not specified.
func logf(fmt string, v ...interface{}) {
}
