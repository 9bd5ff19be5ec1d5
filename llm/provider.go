package llm

import (
	"context"
	"errors"

	"github.com/PipeOpsHQ/medical-coder-api/types"
)

var ErrEmptyResponse = errors.New("llm: empty response")

type Provider interface {
	Name() string
	Generate(ctx context.Context, req types.Request) (types.Response, error)
}
