package resolver

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/Borislavv/go-ash-fetch/model"
)

// Locator maps a valid key to the origin locator of its resource.
type Locator func(key model.Key) (string, error)

// ImageURL uses the key identity as the image URL; the variant must be a usable model.Size.
func ImageURL(key model.Key) (string, error) {
	size, ok := key.Variant.(model.Size)
	if !ok {
		return "", fmt.Errorf("%w: %s: variant is not a size", model.ErrInvalidInput, key)
	}
	for _, side := range []float64{size.Width, size.Height} {
		if side < 0 || math.IsNaN(side) || math.IsInf(side, 0) {
			return "", fmt.Errorf("%w: %s: bad size", model.ErrInvalidInput, key)
		}
	}
	if err := checkURL(key.Identity); err != nil {
		return "", err
	}
	return key.Identity, nil
}

// PageURL fills {page} and {size} of tmpl from the key's model.Page.
func PageURL(tmpl string) Locator {
	return func(key model.Key) (string, error) {
		page, ok := key.Variant.(model.Page)
		if !ok {
			return "", fmt.Errorf("%w: %s: variant is not a page", model.ErrInvalidInput, key)
		}
		if page.Number < 0 || page.Size <= 0 {
			return "", fmt.Errorf("%w: %s: bad page window", model.ErrInvalidInput, key)
		}
		locator := strings.NewReplacer(
			"{page}", strconv.Itoa(page.Number),
			"{size}", strconv.Itoa(page.Size),
		).Replace(tmpl)
		if err := checkURL(locator); err != nil {
			return "", err
		}
		return locator, nil
	}
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) url", model.ErrInvalidInput, raw)
	}
	return nil
}
