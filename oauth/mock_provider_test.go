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

package oauth

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of Provider. ID, Name and APIKey
// are fixed; Refresh is mocked.
type MockProvider struct {
	mock.Mock
	id string
}

type MockProvider_Expecter struct {
	mock *mock.Mock
}

func (_m *MockProvider) EXPECT() *MockProvider_Expecter {
	return &MockProvider_Expecter{mock: &_m.Mock}
}

func (_m *MockProvider) ID() string   { return _m.id }
func (_m *MockProvider) Name() string { return "Mock " + _m.id }

func (_m *MockProvider) APIKey(creds Credentials) string {
	return "key:" + creds.Access
}

// Refresh provides a mock function with given fields: ctx, creds
func (_m *MockProvider) Refresh(ctx context.Context, creds Credentials) (Credentials, error) {
	ret := _m.Called(ctx, creds)

	if len(ret) == 0 {
		panic("no return value specified for Refresh")
	}

	if rf, ok := ret.Get(0).(func(context.Context, Credentials) (Credentials, error)); ok {
		return rf(ctx, creds)
	}
	return ret.Get(0).(Credentials), ret.Error(1)
}

// MockProvider_Refresh_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Refresh'
type MockProvider_Refresh_Call struct {
	*mock.Call
}

// Refresh is a helper method to define mock.On call
//   - ctx context.Context
//   - creds Credentials
func (_e *MockProvider_Expecter) Refresh(ctx interface{}, creds interface{}) *MockProvider_Refresh_Call {
	return &MockProvider_Refresh_Call{Call: _e.mock.On("Refresh", ctx, creds)}
}

func (_c *MockProvider_Refresh_Call) Return(_a0 Credentials, _a1 error) *MockProvider_Refresh_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

// NewMockProvider creates a new instance of MockProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}, id string) *MockProvider {
	m := &MockProvider{id: id}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
