package interfaces

import (
	"time"

	"nifty-signals/internal/signal"
)

type ReportWriter interface {
	WriteDay(t time.Time, evals map[string]signal.Evaluation) (csvPath string, err error)
	ShouldRunNow() (shouldRun bool, csvPath string)
}
