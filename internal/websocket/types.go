package websocket

type Message struct {
	Type int
	Data []byte
}

type Writer interface {
	WriteMessage(msg Message)
	Error(reason string)
}

type wsWriter struct {
	writer chan Message
	error  chan string
	done   chan struct{}
}

// WriteMessage drops the message once the connection is gone.
func (w wsWriter) WriteMessage(msg Message) {
	select {
	case w.writer <- msg:
	case <-w.done:
	}
}

func (w wsWriter) Error(reason string) {
	select {
	case w.error <- reason:
	case <-w.done:
	}
}
