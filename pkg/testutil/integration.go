package testutil

import (
	"context"
	"os"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides a download directory and a bounded context
// for tests that run the whole pipeline against fake sinks.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)
	s.startTime = time.Now()
}

// SetupTest gives every test its own empty download directory.
func (s *IntegrationTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "polyload-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownTest removes the download directory.
func (s *IntegrationTestSuite) TearDownTest() {
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
	}
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	s.T().Logf("integration suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// DownloadDir returns the per-test input directory.
func (s *IntegrationTestSuite) DownloadDir() string {
	return s.tempDir
}

// AddFile writes an input file into the download directory.
func (s *IntegrationTestSuite) AddFile(name, content string) string {
	return WriteFile(s.T(), s.tempDir, name, content)
}
