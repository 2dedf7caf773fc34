package server

import (
	"context"
	"fmt"

	"github.com/panjf2000/gnet/v2"

	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/modbus"
)

// connContext holds per-connection state: the reassembly buffer for
// MBAP frames split across TCP segments.
type connContext struct {
	buffer []byte
	addr   string
}

// TCPServer is the Modbus-TCP front of the bridge. Requests are executed
// one at a time against the modbus.Unit; multiple clients are multiplexed
// over the event loop, so from the core's perspective they are serial.
type TCPServer struct {
	gnet.BuiltinEventEngine

	addr   string
	logger *zap.Logger
	unit   *modbus.Unit
}

func NewTCPServer(cfg *config.Config, logger *zap.Logger, unit *modbus.Unit) *TCPServer {
	return &TCPServer{
		addr:   fmt.Sprintf("tcp://%s:%d", cfg.Server.Host, cfg.Server.Port),
		logger: logger,
		unit:   unit,
	}
}

func (s *TCPServer) OnBoot(eng gnet.Engine) (action gnet.Action) {
	s.logger.Info("Modbus-TCP server is booting", zap.String("address", s.addr))
	return
}

func (s *TCPServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	s.logger.Info("New connection opened", zap.String("remote_addr", c.RemoteAddr().String()))
	c.SetContext(&connContext{
		buffer: make([]byte, 0, 512),
		addr:   c.RemoteAddr().String(),
	})
	return
}

func (s *TCPServer) OnTraffic(c gnet.Conn) (action gnet.Action) {
	ctx := c.Context().(*connContext)

	buf, _ := c.Next(-1)
	if len(buf) > 0 {
		ctx.buffer = append(ctx.buffer, buf...)

		for {
			adu, consumed, err := modbus.FrameADU(ctx.buffer)
			if err != nil {
				// A corrupt MBAP header is unrecoverable; drop the stream.
				s.logger.Error("Bad Modbus framing", zap.Error(err), zap.String("addr", ctx.addr))
				action = gnet.Close
				return
			}
			if adu == nil {
				// Need more data.
				break
			}

			resp := &modbus.ADU{
				TransactionID: adu.TransactionID,
				UnitID:        adu.UnitID,
				PDU:           s.unit.Process(adu.PDU),
			}
			if _, err := c.Write(resp.Encode()); err != nil {
				s.logger.Warn("Failed to write response", zap.Error(err), zap.String("addr", ctx.addr))
				action = gnet.Close
				return
			}

			ctx.buffer = ctx.buffer[consumed:]
		}
	}

	return
}

func (s *TCPServer) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	s.logger.Info("Connection closed", zap.String("remote", c.RemoteAddr().String()), zap.Error(err))
	return
}

func (s *TCPServer) OnShutdown(eng gnet.Engine) {
	s.logger.Info("Modbus-TCP server is shutting down")
}

func (s *TCPServer) Start(ctx context.Context) error {
	s.logger.Info("Starting Modbus-TCP server", zap.String("addr", s.addr))
	return gnet.Run(s, s.addr,
		gnet.WithMulticore(false), // single serve actor, no cross-loop state
		gnet.WithLogger(s.logger.Sugar()),
		gnet.WithReusePort(true),
	)
}

func (s *TCPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping Modbus-TCP server...")
	return gnet.Stop(ctx, s.addr)
}
