package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gotnfs/internal/dispatch"
	"gotnfs/internal/metrics"
	"gotnfs/internal/protocol"
	"gotnfs/internal/session"
)

// startServer brings up a Server on an ephemeral port and returns its
// resolved address plus a cancel function to stop it.
func startServer(t *testing.T) (*net.UDPAddr, context.CancelFunc) {
	t.Helper()
	root := t.TempDir()
	sessions := session.NewTable(4, metrics.Noop())
	d := dispatch.New(root, sessions, metrics.Noop())

	srv := New(Config{
		ListenAddr:      "127.0.0.1:0",
		IdleTimeout:     time.Minute,
		SweepInterval:   time.Millisecond * 10,
		RateLimitPerSec: 0,
	}, sessions, d)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
			t.Errorf("Serve: %v", err)
		}
	}()

	var addr *net.UDPAddr
	for i := 0; i < 100 && addr == nil; i++ {
		time.Sleep(time.Millisecond)
		if srv.conn != nil {
			addr = srv.conn.LocalAddr().(*net.UDPAddr)
		}
	}
	require.NotNil(t, addr, "server did not start listening in time")
	return addr, cancel
}

func mountDatagram() []byte {
	payload := []byte{0x02, 0x00} // version
	payload = append(payload, []byte("/\x00")...)
	payload = append(payload, []byte("\x00")...)
	payload = append(payload, []byte("\x00")...)
	hdr := []byte{0x00, 0x00, 0x01, byte(protocol.CmdMount)}
	return append(hdr, payload...)
}

func TestServer_MountRoundTrip(t *testing.T) {
	addr, cancel := startServer(t)
	defer cancel()

	client, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(mountDatagram())
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 5)

	status := buf[4]
	require.Equal(t, byte(protocol.StatusOK), status)
}

func TestServer_UnknownSessionGetsStale(t *testing.T) {
	addr, cancel := startServer(t)
	defer cancel()

	client, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer client.Close()

	req := []byte{0x99, 0x00, 0x01, byte(protocol.CmdReadBlock), 0x00, 0x00, 0x01}
	_, err = client.Write(req)
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 5)
	require.Equal(t, byte(protocol.StatusESTALE), buf[4])
}
