// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/renderwait/internal/config"
	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/report"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Wait() config.WaitConfig {
	args := m.Called()
	return args.Get(0).(config.WaitConfig)
}

func (m *MockConfig) Driver() config.DriverConfig {
	args := m.Called()
	return args.Get(0).(config.DriverConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	args := m.Called()
	return args.Get(0).(config.ReportConfig)
}

var _ config.Interface = (*MockConfig)(nil)

// -- Driver Mocks --

// MockDriver mocks driver.Driver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	args := m.Called(ctx, loc)
	if els := args.Get(0); els != nil {
		return els.([]driver.Element), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockElement mocks driver.Element.
type MockElement struct {
	mock.Mock
}

func (m *MockElement) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	args := m.Called(ctx, loc)
	if els := args.Get(0); els != nil {
		return els.([]driver.Element), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockElement) Click(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockElement) SendKeys(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockElement) Clear(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockElement) Text(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) Attribute(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockElement) IsDisplayed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// -- Recorder Mock --

// MockRecorder mocks report.Recorder.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ev report.Event) { m.Called(ev) }

func (m *MockRecorder) Close() error { return m.Called().Error(0) }
