// Licensed to Alexandre VILAIN under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Alexandre VILAIN licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package polyagent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// MockProvider is a mock implementation of Provider.
type MockProvider struct {
	mock.Mock
}

type MockProvider_Expecter struct {
	mock *mock.Mock
}

func (_m *MockProvider) EXPECT() *MockProvider_Expecter {
	return &MockProvider_Expecter{mock: &_m.Mock}
}

// Stream provides a mock function with given fields: ctx, model, c
func (_m *MockProvider) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	ret := _m.Called(ctx, model, c)

	if len(ret) == 0 {
		panic("no return value specified for Stream")
	}

	var r0 *provider.AssistantStream
	if rf, ok := ret.Get(0).(func(context.Context, provider.Model, provider.Context) *provider.AssistantStream); ok {
		r0 = rf(ctx, model, c)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*provider.AssistantStream)
	}

	return r0
}

// MockProvider_Stream_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Stream'
type MockProvider_Stream_Call struct {
	*mock.Call
}

// Stream is a helper method to define mock.On call
//   - ctx context.Context
//   - model provider.Model
//   - c provider.Context
func (_e *MockProvider_Expecter) Stream(ctx interface{}, model interface{}, c interface{}) *MockProvider_Stream_Call {
	return &MockProvider_Stream_Call{Call: _e.mock.On("Stream", ctx, model, c)}
}

func (_c *MockProvider_Stream_Call) Run(run func(ctx context.Context, model provider.Model, c provider.Context)) *MockProvider_Stream_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(provider.Model), args[2].(provider.Context))
	})
	return _c
}

func (_c *MockProvider_Stream_Call) Return(_a0 *provider.AssistantStream) *MockProvider_Stream_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockProvider_Stream_Call) RunAndReturn(run func(context.Context, provider.Model, provider.Context) *provider.AssistantStream) *MockProvider_Stream_Call {
	_c.Call.Return(run)
	return _c
}

// NewMockProvider creates a new instance of MockProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	m := &MockProvider{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
