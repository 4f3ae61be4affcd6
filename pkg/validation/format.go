// Package validation checks user-supplied input before it reaches the calculators or the store.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/dealership-quote/pkg/constants"
)

// OutputFormats lists the CLI output formats.
var OutputFormats = []string{constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON}

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	for _, f := range OutputFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("expected output format of %s, got %q", strings.Join(OutputFormats, ", "), format)
}
