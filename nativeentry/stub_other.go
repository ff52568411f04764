// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64 || appengine

package nativeentry

import "errors"

// nativeCode is the no-op stand-in used on platforms the dispatch stub
// was never ported to. available reports false unconditionally, so
// Backend.Invoke always branches in Go instead.
type nativeCode struct{}

func (c nativeCode) available() bool { return false }

func (c nativeCode) dispatch(isDeployCode bool) (bool, error) {
	return false, errors.New("nativeentry: no native dispatch stub on this platform")
}

func assembleDispatchStub() (nativeCode, error) {
	return nativeCode{}, errors.New("nativeentry: JIT dispatch stub unsupported on this platform")
}
