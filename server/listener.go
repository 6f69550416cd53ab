package server

import (
	"net"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// startUnixListener serves the echo instance on a unix socket, replacing
// a stale socket file left behind by a previous run.
func startUnixListener(echoServer *echo.Echo, sockPath string) error {
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove stale socket %s", sockPath)
	}
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", sockPath)
	}
	if err := os.Chmod(sockPath, 0o660); err != nil {
		return errors.Wrapf(err, "chmod socket %s", sockPath)
	}
	echoServer.Listener = listener
	if err := echoServer.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
