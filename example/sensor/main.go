//go:build linux

// Command sensor reads one value from a FIFO written by a simulated sensor.
// The handler removes itself once it has the value, which ends the loop.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	reactor "github.com/lackone/go-reactor"
	"golang.org/x/sys/unix"
)

type sensorHandler struct {
	r     *reactor.Reactor[int, reactor.Event]
	fd    int
	value byte
	log   *reactor.Logger
}

func (h *sensorHandler) Handle() int {
	return h.fd
}

func (h *sensorHandler) Notify(ev reactor.Event) {
	if !ev.IsRead() {
		h.log.Warning().Str("event", ev.String()).Log("unexpected event")
		return
	}
	var b [1]byte
	n, err := unix.Read(h.fd, b[:])
	if err != nil {
		h.log.Err().Err(err).Log("read failed")
		return
	}
	if n == 1 {
		h.value = b[0]
	}
	if err := h.r.Remove(h); err != nil {
		h.log.Err().Err(err).Log("remove failed")
	}
}

func simulateSensor(path string, value byte, logger *reactor.Logger) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		logger.Err().Err(err).Log("open fifo for writing")
		return
	}
	defer unix.Close(fd)
	if _, err := unix.Write(fd, []byte{value}); err != nil {
		logger.Err().Err(err).Log("write fifo")
	}
}

func run() error {
	var (
		backend = flag.String("backend", "epoll", "readiness backend: epoll or poll")
		value   = flag.String("value", "5", "single byte the sensor sends")
		timeout = flag.Duration("timeout", 5*time.Second, "give up after this long")
		debug   = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()
	if len(*value) != 1 {
		return errors.New("value must be exactly one byte")
	}

	level := logiface.LevelInformational
	if *debug {
		level = logiface.LevelDebug
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	t := reactor.EpollType
	if *backend == "poll" {
		t = reactor.PollType
	}
	r, err := reactor.NewFDReactor(t, reactor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	dir, err := os.MkdirTemp("", "sensor")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "sensor_fifo")
	if err := unix.Mkfifo(path, 0o666); err != nil {
		return err
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	h := &sensorHandler{r: r, fd: fd, log: logger}
	if err := r.Register(h, reactor.EventRead); err != nil {
		return err
	}

	go simulateSensor(path, (*value)[0], logger)

	if err := r.RunFor(*timeout); err != nil {
		return err
	}
	if r.Count() != 0 {
		return errors.New("timed out waiting for the sensor")
	}
	logger.Info().Str("value", string(h.value)).Log("sensor value received")
	fmt.Println(string(h.value))
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
