package link

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"wheelly/internal/clock"
	"wheelly/internal/world"
)

// SerialLink drives the robot over a line-oriented serial connection: a
// bufio.Scanner reader loop feeds a channel, paired with a writer guarded
// by a mutex so command writes never interleave.
type SerialLink struct {
	portName string
	mode     *serial.Mode
	cfg      Config

	mu     sync.Mutex
	port   serial.Port
	closed bool

	messages chan world.Message
	dropped  int // telemetry lines dropped under backpressure
}

// NewSerialLink constructs a link bound to portName at the given baud rate.
func NewSerialLink(portName string, baudRate int, cfg Config) *SerialLink {
	return &SerialLink{
		portName: portName,
		mode:     &serial.Mode{BaudRate: baudRate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		cfg:      cfg,
		messages: make(chan world.Message, cfg.queueDepth()),
	}
}

// Connect opens the serial port and starts the background reader. It
// returns once the port is open; reading continues until ctx is cancelled
// or Close is called.
func (l *SerialLink) Connect(ctx context.Context) error {
	port, err := serial.Open(l.portName, l.mode)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrTransportClosed, l.portName, err)
	}
	if l.cfg.SerialTimeout > 0 {
		_ = port.SetReadTimeout(l.cfg.SerialTimeout)
	}
	l.mu.Lock()
	l.port = port
	l.mu.Unlock()

	go l.readLoop(ctx, port)
	return nil
}

func (l *SerialLink) readLoop(ctx context.Context, port serial.Port) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, ok, err := parseTelemetry(scanner.Text())
		if err != nil || !ok {
			continue // malformed/uninteresting lines are dropped without being counted
		}
		l.deliver(msg)
	}
}

// deliver enqueues one parsed message, holding the link mutex for the send
// so Close can never close the channel out from under a live writer (a send
// on a closed channel panics even inside a select with a default case).
func (l *SerialLink) deliver(msg world.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.messages <- msg:
	default:
		//1.- Queue full: drop the oldest-arriving telemetry rather than
		// block the reader; the drop counter tracks backpressure.
		select {
		case <-l.messages:
			l.dropped++
		default:
		}
		select {
		case l.messages <- msg:
		default:
			l.dropped++
		}
	}
}

// Dropped reports how many telemetry messages were discarded under
// backpressure since the link was opened.
func (l *SerialLink) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close shuts down the serial port and telemetry channel.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.messages)
	if l.port == nil {
		return nil
	}
	return l.port.Close()
}

func (l *SerialLink) write(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.port == nil {
		return ErrTransportClosed
	}
	_, err := l.port.Write([]byte(line))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}

func (l *SerialLink) SendMotors(left, right int, validTo clock.Time) error {
	return l.write(formatMotors(left, right, validTo))
}

func (l *SerialLink) SendScan(deg float64) error { return l.write(formatScan(deg)) }

func (l *SerialLink) SendHalt() error { return l.write(cmdHalt) }

func (l *SerialLink) SendQueryStatus() error { return l.write(cmdStatus) }

func (l *SerialLink) ClockSync(token string) error { return l.write(formatClock(token)) }

func (l *SerialLink) Messages() <-chan world.Message { return l.messages }

var _ Link = (*SerialLink)(nil)
