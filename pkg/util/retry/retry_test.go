// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return merr.WrapErrIoFailedReason("connection refused")
		}
		return nil
	}, Attempts(5), Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReachMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return merr.WrapErrIoFailedReason("connection refused")
	}, Attempts(3), Sleep(time.Millisecond))
	assert.ErrorIs(t, err, merr.ErrIoFailed)
	assert.Equal(t, 3, calls)
}

func TestDoUnrecoverable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return Unrecoverable(merr.WrapErrParameterMissing("addr"))
	}, Attempts(5), Sleep(time.Millisecond))
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, 1, calls)
}

func TestDoRetryErr(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("not retryable")
	}, Attempts(5), Sleep(time.Millisecond), RetryErr(func(err error) bool {
		return errors.Is(err, merr.ErrIoFailed)
	}))
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	calls := 0
	err = Do(ctx, func() error {
		calls++
		return merr.WrapErrIoFailedReason("connection refused")
	}, Attempts(0), Sleep(10*time.Millisecond))
	assert.ErrorIs(t, err, merr.ErrIoFailed)
	assert.Greater(t, calls, 1)
}

func TestSleepOptions(t *testing.T) {
	c := newDefaultConfig()
	Sleep(2 * time.Second)(c)
	assert.Equal(t, 4*time.Second, c.maxSleepTime)
	MaxSleepTime(time.Second)(c)
	assert.Equal(t, 4*time.Second, c.maxSleepTime)
	MaxSleepTime(10 * time.Second)(c)
	assert.Equal(t, 10*time.Second, c.maxSleepTime)
}
