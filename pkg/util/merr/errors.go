// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// IO related
	ErrIoFailed      = newLittleError("IO failed", 1001, true)
	ErrIoUnexpectEOF = newLittleError("unexpected EOF", 1002, false)

	// Parameter related
	ErrParameterInvalid  = newLittleError("invalid parameter", 1100, false)
	ErrParameterMissing  = newLittleError("missing parameter", 1101, false)
	ErrParameterTooLarge = newLittleError("parameter too large", 1102, false)

	// Serialize related
	ErrSerializeUnsupportedCollection = newLittleError("unsupported collection shape", 2500, false)
	ErrSerializeNonNullableAbsent     = newLittleError("non-nullable member absent", 2501, false)
	ErrSerializeTypeUnresolved        = newLittleError("unresolvable type name", 2502, false)
	ErrSerializeTypeNotRegistered     = newLittleError("type not registered", 2503, false)
	ErrSerializeUnsupportedType       = newLittleError("unsupported type", 2504, false)
	ErrSerializeIllegalSchema         = newLittleError("illegal type schema", 2505, false)

	// Frame related
	ErrFrameTooLarge = newLittleError("frame too large", 2600, false)
	ErrFrameCorrupt  = newLittleError("frame corrupt", 2601, false)

	// General
	ErrOperationNotSupported = newLittleError("unsupported operation", 3000, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to littleError
	errUnexpected = newLittleError("unexpected error", (1<<16)-1, false)
)

type errorOption func(*littleError)

func WithErrorType(etype ErrorType) errorOption {
	return func(err *littleError) {
		err.errType = etype
	}
}

type littleError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newLittleError(msg string, code int32, retriable bool, options ...errorOption) littleError {
	err := littleError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e littleError) code() int32 {
	return e.errCode
}

func (e littleError) Error() string {
	return e.msg
}

func (e littleError) Detail() string {
	return e.detail
}

func (e littleError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(littleError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
