package transform

import (
	"context"
	"fmt"

	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/tidwall/gjson"
)

// Pages keeps JSON payloads byte for byte; well-formedness is the only check.
type Pages struct{}

func NewPages() *Pages { return &Pages{} }

func (Pages) Transform(ctx context.Context, key model.Key, raw []byte) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, model.Cancelled(err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, nil, fmt.Errorf("%w: page %s is not valid json", model.ErrDecode, key)
	}
	return raw, raw, nil
}

func (Pages) Decode(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Cancelled(err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: persisted page is not valid json", model.ErrDecode)
	}
	return data, nil
}

func (Pages) Cost(data []byte) int64 { return int64(len(data)) }

// Items counts the elements of the page's top-level "items" array, or of the document
// itself when it is an array.
func Items(data []byte) int {
	res := gjson.ParseBytes(data)
	if res.IsArray() {
		return len(res.Array())
	}
	return len(res.Get("items").Array())
}
