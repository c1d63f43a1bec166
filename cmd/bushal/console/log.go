package console

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mklimuk/bushal"
)

const PictoChip = "🔌"
const PictoMotion = "📈"
const PictoMemory = "💾"
const PictoOK = "✅"
const PictoFail = "❌"

var writer io.Writer = os.Stdout
var errWriter io.Writer = os.Stderr

func SetOutput(w, errw io.Writer) {
	writer = w
	errWriter = errw
}

func Errorf(msg string, args ...any) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Red("ERROR"), fmt.Sprintf(msg, args...))
}

func Warnf(msg string, args ...any) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Yellow("WARN"), fmt.Sprintf(msg, args...))
}

func Infof(msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", White("..."), fmt.Sprintf(msg, args...))
}

func PInfof(picto, msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", picto, fmt.Sprintf(msg, args...))
}

func Print(msg string) {
	_, _ = fmt.Fprintln(writer, msg)
}

func Printf(msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, msg, args...)
}

var _ bushal.Sink = Sink{}

// Sink prints telemetry lines on the console output.
type Sink struct{}

func (Sink) Print(ctx context.Context, text string) error {
	_, err := fmt.Fprint(writer, text)
	return err
}
