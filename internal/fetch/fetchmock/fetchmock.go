// Package fetchmock provides a testify mock for the fetch.Fetcher interface.
package fetchmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/savx/savxbot/internal/fetch"
)

// MockFetcher is a mock implementation of fetch.Fetcher.
type MockFetcher struct {
	mock.Mock

	// Events, when set, is replayed to the onEvent callback during Fetch.
	Events []fetch.Event
	// WriteFile, when set, is invoked with the output path during Fetch so
	// tests can materialize a downloaded file.
	WriteFile func(outputPath string)
}

var _ fetch.Fetcher = &MockFetcher{}

func (m *MockFetcher) Probe(ctx context.Context, url string) (*fetch.Info, error) {
	args := m.Called(ctx, url)
	info, _ := args.Get(0).(*fetch.Info)
	return info, args.Error(1)
}

func (m *MockFetcher) Fetch(ctx context.Context, url, outputPath string, onEvent func(fetch.Event)) error {
	args := m.Called(ctx, url, outputPath)

	if onEvent != nil {
		for _, ev := range m.Events {
			onEvent(ev)
		}
	}
	if m.WriteFile != nil {
		m.WriteFile(outputPath)
	}

	return args.Error(0)
}
