// Package testutil provides testing utilities for polyload
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// TagsCSV renders a goodbooks-style tags file with n rows.
func TagsCSV(n int) string {
	var b strings.Builder
	b.WriteString("tag_id,tag_name\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,tag-%d\n", i, i)
	}
	return b.String()
}

// RatingsCSV renders a goodbooks-style ratings file with n rows.
func RatingsCSV(n int) string {
	var b strings.Builder
	b.WriteString("user_id,book_id,rating\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,%d,%d\n", i, 100+i, 1+i%5)
	}
	return b.String()
}
