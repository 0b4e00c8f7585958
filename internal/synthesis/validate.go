package synthesis

import (
	"errors"
	"fmt"
	"strings"

	"NewsWeaver/internal/domain"
)

const (
	maxTitleLength = 300
	maxBodyLength  = 40000
)

// ValidateResult checks a synthesis result against the fixed schema.
// A failing result is treated as a transport failure: nothing is committed.
func ValidateResult(result domain.SynthesisResult) error {
	if len(result.TitleVariants) == 0 {
		return errors.New("no title variants")
	}
	if len(result.BodyVariants) == 0 {
		return errors.New("no body variants")
	}

	for i, title := range result.TitleVariants {
		title = strings.TrimSpace(title)
		if title == "" {
			return fmt.Errorf("title variant %d is empty", i)
		}
		if len(title) > maxTitleLength {
			return fmt.Errorf("title variant %d exceeds %d characters", i, maxTitleLength)
		}
	}

	for i, body := range result.BodyVariants {
		body = strings.TrimSpace(body)
		if body == "" {
			return fmt.Errorf("body variant %d is empty", i)
		}
		if len(body) > maxBodyLength {
			return fmt.Errorf("body variant %d exceeds %d characters", i, maxBodyLength)
		}
	}

	return nil
}
