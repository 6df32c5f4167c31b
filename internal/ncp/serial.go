package ncp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialStack drives a co-processor attached over UART or USB CDC ACM.
type SerialStack struct {
	port     io.ReadWriteCloser
	reader   *bufio.Reader
	endpoint uint8
	logger   *slog.Logger

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	onAttr    func(AttributeMessage)
	onSignal  func(Signal)

	// every decoded signal is also offered here for Start
	signalCh chan Signal

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenSerial opens portName and starts reading frames. The stack is not
// started until Start is called.
func OpenSerial(portName string, baudRate int, endpoint uint8, logger *slog.Logger) (*SerialStack, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("ncp: open %s: %w", portName, err)
	}

	// USB CDC ACM firmware waits for DTR before talking.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	s := newSerialStack(port, endpoint, logger)
	s.logger.Info("serial port opened", "port", portName, "baud", baudRate)
	return s, nil
}

func newSerialStack(rwc io.ReadWriteCloser, endpoint uint8, logger *slog.Logger) *SerialStack {
	s := &SerialStack{
		port:     rwc,
		reader:   bufio.NewReader(rwc),
		endpoint: endpoint,
		logger:   logger.With("component", "ncp"),
		signalCh: make(chan Signal, 4),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
}

// Start asks the co-processor to bring up the light endpoint and waits for
// the outcome. Unknown signals received meanwhile are skipped.
func (s *SerialStack) Start(ctx context.Context) error {
	// discard signals that arrived before the request
	for {
		select {
		case <-s.signalCh:
			continue
		default:
		}
		break
	}

	if err := s.write(encodeStartRequest(s.endpoint)); err != nil {
		return fmt.Errorf("ncp: send start request: %w", err)
	}
	s.logger.Debug("start request sent", "endpoint", s.endpoint)

	for {
		select {
		case sig := <-s.signalCh:
			if sig.Kind == SignalUnknown {
				continue
			}
			return startResult(sig)
		case <-ctx.Done():
			return fmt.Errorf("ncp: waiting for stack start: %w", ctx.Err())
		case <-s.done:
			return errors.New("ncp: closed")
		}
	}
}

func (s *SerialStack) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.port.Write(frame)
	return err
}

// OnAttribute sets the handler for inbound attribute writes. It runs on the
// read goroutine.
func (s *SerialStack) OnAttribute(handler func(AttributeMessage)) {
	s.handlerMu.Lock()
	s.onAttr = handler
	s.handlerMu.Unlock()
}

// OnSignal sets the handler for lifecycle signals. It runs on the read goroutine.
func (s *SerialStack) OnSignal(handler func(Signal)) {
	s.handlerMu.Lock()
	s.onSignal = handler
	s.handlerMu.Unlock()
}

func (s *SerialStack) readLoop() {
	defer s.wg.Done()

	backoff := 10 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-s.done:
			return
		default:
		}

		raw, err := readRawFrame(s.reader)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if err != io.EOF && !strings.Contains(err.Error(), "closed") {
				s.logger.Error("serial read error", "err", err)
			}
			select {
			case <-time.After(backoff):
			case <-s.done:
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = 10 * time.Millisecond

		body, err := hdlcDecode(raw)
		if err != nil {
			s.logger.Warn("dropping frame", "err", err, "raw", fmt.Sprintf("%X", raw))
			continue
		}
		s.handleFrame(body)
	}
}

func (s *SerialStack) handleFrame(body []byte) {
	if len(body) == 0 {
		return
	}
	s.handlerMu.RLock()
	onAttr, onSignal := s.onAttr, s.onSignal
	s.handlerMu.RUnlock()

	switch body[0] {
	case frameSignal:
		sig, err := parseSignal(body[1:])
		if err != nil {
			s.logger.Warn("bad signal frame", "err", err)
			return
		}
		if onSignal != nil {
			onSignal(sig)
		}
		select {
		case s.signalCh <- sig:
		default:
		}

	case frameAttribute:
		msg, err := parseAttribute(body[1:])
		if err != nil {
			s.logger.Warn("bad attribute frame", "err", err)
			return
		}
		if onAttr != nil {
			onAttr(msg)
		}

	default:
		s.logger.Debug("unhandled frame kind", "kind", fmt.Sprintf("0x%02X", body[0]), "len", len(body))
	}
}

// Close stops the read loop and closes the port.
func (s *SerialStack) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	s.wg.Wait()
	return err
}
