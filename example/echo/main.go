//go:build linux

// Command echo runs a length-prefixed echo server on a single-threaded
// reactor. With -client it instead sends a timestamp once a second and
// prints the reply.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	reactor "github.com/lackone/go-reactor"
)

type echoHandler struct {
	log *reactor.Logger
}

func (h *echoHandler) OnConnect(conn *reactor.Conn) {
	h.log.Info().Str("remote", conn.RemoteAddr()).Log("connected")
}

func (h *echoHandler) OnData(conn *reactor.Conn, frame []byte) {
	h.log.Debug().Str("remote", conn.RemoteAddr()).Int("len", len(frame)).Log("frame")
	if _, err := conn.Write(frame); err != nil {
		h.log.Warning().Err(err).Log("write failed")
	}
}

func (h *echoHandler) OnClose(conn *reactor.Conn, err error) {
	h.log.Info().Str("remote", conn.RemoteAddr()).Err(err).Log("closed")
}

func serve(addr string, backend reactor.BackendType, logger *reactor.Logger) error {
	r, err := reactor.NewFDReactor(backend, reactor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	server := reactor.NewTCPServer(r, addr, &echoHandler{log: logger}, reactor.LengthFieldCodec{MaxFrameSize: 1 << 20})
	if err := server.Listen(); err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return r.Run(ctx)
}

func client(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		msg := []byte(time.Now().Format(time.DateTime))
		frame := make([]byte, 4+len(msg))
		binary.BigEndian.PutUint32(frame, uint32(len(frame)))
		copy(frame[4:], msg)
		if _, err := conn.Write(frame); err != nil {
			return err
		}

		var header [4]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return err
		}
		reply := make([]byte, binary.BigEndian.Uint32(header[:])-4)
		if _, err := io.ReadFull(conn, reply); err != nil {
			return err
		}
		fmt.Println("echo:", string(reply))
		time.Sleep(time.Second)
	}
}

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:8080", "listen or dial address")
		isClient = flag.Bool("client", false, "run the client instead of the server")
		usePoll  = flag.Bool("poll", false, "use the poll(2) backend")
		debug    = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	level := logiface.LevelInformational
	if *debug {
		level = logiface.LevelDebug
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	var err error
	if *isClient {
		err = client(*addr)
	} else {
		backend := reactor.EpollType
		if *usePoll {
			backend = reactor.PollType
		}
		err = serve(*addr, backend, logger)
	}
	if err != nil && err != context.Canceled {
		logger.Err().Err(err).Log("exit")
		os.Exit(1)
	}
}
