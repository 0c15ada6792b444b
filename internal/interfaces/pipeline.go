package interfaces

import (
	"context"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/pipeline"
)

type Processor interface {
	Process(ctx context.Context, raw dataset.Frame) (*pipeline.Result, error)
}
