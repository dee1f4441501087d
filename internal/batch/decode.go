package batch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidDataURL is returned for input that is not a base64 data URL
var ErrInvalidDataURL = errors.New("invalid data url")

var dataURLPattern = regexp.MustCompile(`^data:(.+);base64,(.+)$`)

// ParseDataURL splits a data:<mime>;base64,<payload> string into its MIME
// type and decoded bytes.
func ParseDataURL(dataURL string) (string, []byte, error) {
	m := dataURLPattern.FindStringSubmatch(strings.TrimSpace(dataURL))
	if m == nil {
		return "", nil, fmt.Errorf("%w: expected data:<mime>;base64,<payload>", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", nil, fmt.Errorf("%w: decoding payload: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	return m[1], data, nil
}
