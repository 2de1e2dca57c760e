// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selector

import (
	"encoding/json"
	"errors"
	"regexp"
)

// arrayPattern matches the first bracketed, non-nested substring of the
// model's reply. Models often wrap the array in prose or code fences, so a
// whole-response JSON decode is too strict.
var arrayPattern = regexp.MustCompile(`\[[^\[\]]*\]`)

var (
	errNoArray = errors.New("no array in response")
	errBadJSON = errors.New("array is not a JSON string list")
)

// parseSelection extracts the JSON array of source identifiers from a raw
// model reply. It is the only place in the package that touches the reply
// text; callers map its errors onto fallback sets.
func parseSelection(response string) ([]string, error) {
	match := arrayPattern.FindString(response)
	if match == "" {
		return nil, errNoArray
	}

	var selected []string
	if err := json.Unmarshal([]byte(match), &selected); err != nil {
		return nil, errBadJSON
	}
	return selected, nil
}
