package backend

import (
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Serve answers protocol requests read from conn using c until conn reaches EOF or ctx is
// cancelled. It is the counterpart of RemoteClient and lets any Client, such as the fake
// backend, be reached over TCP or a serial link.
func Serve(ctx context.Context, conn io.ReadWriter, c Client, logger logging.Logger) error {
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return errors.Wrap(err, "failed to decode request")
		}

		resp := handle(ctx, c, &req)
		if resp.Error != "" && resp.Error != codeNotReady {
			logger.Debugf("Request %d (%s %s) failed: %s", req.ID, req.Op, req.Name, resp.Error)
		}
		if !req.expectsResponse() {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return errors.Wrap(err, "failed to encode response")
		}
	}
}

// ListenAndServe accepts TCP connections on addr and serves each with Serve.
func ListenAndServe(ctx context.Context, addr string, c Client, logger logging.Logger) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logger.Infof("Serving backend on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept failed")
		}
		go func() {
			defer conn.Close()
			if err := Serve(ctx, conn, c, logger); err != nil {
				logger.Warnf("Connection from %s ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}
