package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/haivivi/rtvoice/pkg/cli"
	"github.com/haivivi/rtvoice/pkg/realtime"
)

// chatView renders transcripts to out and the speaking indicator to
// status.
type chatView struct {
	out    io.Writer
	status io.Writer
	styles cli.Styles

	mu       sync.Mutex
	speaking bool
	inLine   bool
}

func newChatView(out, status io.Writer, styles cli.Styles) *chatView {
	return &chatView{out: out, status: status, styles: styles}
}

func (v *chatView) handle(ev realtime.ServerEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch e := ev.(type) {
	case *realtime.SessionCreated:
		fmt.Fprintln(v.status, v.styles.Help.Render("session "+e.Session.ID))
	case *realtime.InputTranscriptionCompleted:
		v.endLine()
		fmt.Fprintf(v.out, "%s %s\n", v.styles.Label("user"), e.Transcript)
	case *realtime.ResponseTranscriptDelta:
		v.write(e.Delta)
	case *realtime.ResponseTextDelta:
		v.write(e.Delta)
	case *realtime.ResponseTranscriptDone:
		v.endLine()
	case *realtime.ResponseDone:
		v.endLine()
		v.setSpeaking(false)
	case *realtime.ResponseAudioDelta:
		v.setSpeaking(true)
	case *realtime.ResponseAudioDone:
		v.setSpeaking(false)
	case *realtime.ErrorEvent:
		v.endLine()
		fmt.Fprintln(v.status, v.styles.Error.Render("error: "+e.Error.Message))
	}
}

func (v *chatView) write(delta string) {
	if !v.inLine {
		fmt.Fprintf(v.out, "%s ", v.styles.Label("assistant"))
		v.inLine = true
	}
	io.WriteString(v.out, v.styles.Assistant.Render(delta))
}

func (v *chatView) endLine() {
	if v.inLine {
		fmt.Fprintln(v.out)
		v.inLine = false
	}
}

func (v *chatView) setSpeaking(speaking bool) {
	if v.speaking == speaking {
		return
	}
	v.speaking = speaking
	fmt.Fprintln(v.status, v.styles.Indicator(speaking))
}
