// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !386 && !amd64
// +build !386,!amd64

package edison

const isX86 = false
