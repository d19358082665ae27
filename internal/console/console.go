// Package console holds the end-of-run notifiers for interactive use.
package console

import (
	"bufio"
	"fmt"
	"io"
)

const (
	successLine = "Merge complete."
	failureLine = "Merge failed, see the log above."
	promptLine  = "Press Enter to exit..."
)

// PressEnterGate reports the outcome and blocks until a line, or EOF, is read
// from In. It lets a double-clicked console window stay open.
type PressEnterGate struct {
	In  io.Reader
	Out io.Writer
}

func (g PressEnterGate) NotifyCompletion(success bool) {
	if success {
		fmt.Fprintln(g.Out, successLine)
	} else {
		fmt.Fprintln(g.Out, failureLine)
	}
	fmt.Fprint(g.Out, promptLine)
	// Any read error, EOF included, releases the gate.
	_, _ = bufio.NewReader(g.In).ReadString('\n')
	fmt.Fprintln(g.Out)
}

// Nop ignores completion.
type Nop struct{}

func (Nop) NotifyCompletion(bool) {}
