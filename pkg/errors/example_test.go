// Package errors provides examples of structured error handling in polyload.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/polyload/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeConfig, "sink uri is required").
		WithDetail("sink", "postgres")

	fmt.Println(err.Error())

	// Output:
	// config: sink uri is required
}

// ExampleNewSinkError shows how sink failures carry their attribution.
func ExampleNewSinkError() {
	err := errors.NewSinkError("neo4j", "Tag", errors.ErrorTypeInsert, io.ErrUnexpectedEOF)

	fmt.Println(err.Error())
	fmt.Println(errors.IsType(err, errors.ErrorTypeInsert))

	// Output:
	// insert: sink neo4j, target Tag: unexpected EOF
	// true
}

// ExampleNewParseError shows a malformed row error.
func ExampleNewParseError() {
	err := errors.NewParseError("data/tags.csv", 12, io.ErrUnexpectedEOF)

	fmt.Println(errors.IsType(err, errors.ErrorTypeParse))
	fmt.Println(errors.Is(err, io.ErrUnexpectedEOF))

	// Output:
	// true
	// true
}
